package entity

import "errors"

// Alert validation errors, defined as variables so callers can compare with
// errors.Is().
var (
	ErrAlertNameRequired    = errors.New("alert name is required")
	ErrAlertHostUUIDMissing = errors.New("alert host_uuid is required")
	ErrAlertTableRequired   = errors.New("alert table is required")
	ErrAlertLookupRequired  = errors.New("alert lookup is required")
	ErrAlertWarnRequired    = errors.New("alert warn expression is required")
	ErrAlertCritRequired    = errors.New("alert crit expression is required")
	ErrAlertInvalidTiming   = errors.New("alert timing must be >= 1 second")
)

// Alert is the monitored unit: a compiled-per-tick condition attached to one
// host.
type Alert struct {
	ID          ID     `db:"id"`
	Name        string `db:"name"`
	HostUUID    string `db:"host_uuid"`
	Hostname    string `db:"hostname"`
	Table       string `db:"table_name"`
	Lookup      string `db:"lookup"`
	WhereClause string `db:"where_clause"`
	Warn        string `db:"warn"`
	Crit        string `db:"crit"`
	Timing      int    `db:"timing"`
	Active      bool   `db:"active"`
	Info        string `db:"info"`
}

// NewAlert builds an Alert with a deterministic id and validates it.
func NewAlert(name, hostUUID, hostname, table, lookup, whereClause, warn, crit string, timing int, info string) (*Alert, error) {
	a := &Alert{
		ID:          GenerateAlertID(hostUUID, name),
		Name:        name,
		HostUUID:    hostUUID,
		Hostname:    hostname,
		Table:       table,
		Lookup:      lookup,
		WhereClause: whereClause,
		Warn:        warn,
		Crit:        crit,
		Timing:      timing,
		Active:      true,
		Info:        info,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the structural invariants of an Alert that do not require
// compiling the lookup DSL or the warn/crit expressions (those are checked
// by the compiler and evaluator respectively).
func (a *Alert) Validate() error {
	if a.Name == "" {
		return ErrAlertNameRequired
	}
	if a.HostUUID == "" {
		return ErrAlertHostUUIDMissing
	}
	if a.Table == "" {
		return ErrAlertTableRequired
	}
	if a.Lookup == "" {
		return ErrAlertLookupRequired
	}
	if a.Warn == "" {
		return ErrAlertWarnRequired
	}
	if a.Crit == "" {
		return ErrAlertCritRequired
	}
	if a.Timing < 1 {
		return ErrAlertInvalidTiming
	}
	return nil
}

// HostTargetKind selects which hosts an AlertConfig template expands to.
type HostTargetKind string

// Host target kinds.
const (
	HostTargetAll      HostTargetKind = "ALL"
	HostTargetSpecific HostTargetKind = "SPECIFIC"
)

// HostTarget is the parsed form of an AlertConfig's host_targeted field.
type HostTarget struct {
	Kind     HostTargetKind
	HostUUID string // only meaningful when Kind == HostTargetSpecific
}

// Matches reports whether this target applies to the given host.
func (t HostTarget) Matches(hostUUID string) bool {
	switch t.Kind {
	case HostTargetAll:
		return true
	case HostTargetSpecific:
		return t.HostUUID == hostUUID
	default:
		return false
	}
}

// AlertConfig is a file-defined alert template, expanded across the host
// fleet by the config expander.
type AlertConfig struct {
	Name         string
	Table        string
	Lookup       string
	Warn         string
	Crit         string
	WhereClause  string
	Info         string
	Timing       int
	HostTargeted HostTarget
}

// Expand produces the concrete Alert this template yields for one host.
func (c *AlertConfig) Expand(hostUUID, hostname string) (*Alert, error) {
	return NewAlert(c.Name, hostUUID, hostname, c.Table, c.Lookup, c.WhereClause, c.Warn, c.Crit, c.Timing, c.Info)
}

// Host is an identifier + hostname pair owned by the metrics platform; the
// daemon only ever reads it.
type Host struct {
	UUID     string `db:"uuid"`
	Hostname string `db:"hostname"`
}
