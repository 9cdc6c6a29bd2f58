// Package expander loads file-defined alert templates and expands them
// across the live host fleet, the way utils/monitoring.go's
// alerts_from_config does in the original daemon (there driven by a TOML
// config folder read at startup and on every host CDC insert).
package expander

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
)

// fileConfig is the on-disk shape of one AlertConfig file.
type fileConfig struct {
	Name         string `mapstructure:"name"`
	Table        string `mapstructure:"table"`
	Lookup       string `mapstructure:"lookup"`
	Warn         string `mapstructure:"warn"`
	Crit         string `mapstructure:"crit"`
	WhereClause  string `mapstructure:"where_clause"`
	Info         string `mapstructure:"info"`
	Timing       int    `mapstructure:"timing"`
	HostTargeted string `mapstructure:"host_targeted"`
}

// LoadDir parses every file directly in dir into an AlertConfig;
// subdirectories are skipped, not searched. A malformed file
// fails the whole batch, per the bootstrap error taxonomy (config errors
// are fatal).
func LoadDir(dir string) ([]*entity.AlertConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("expander: cannot read alerts directory %q: %w", dir, err)
	}

	configs := make([]*entity.AlertConfig, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("expander: %s: %w", path, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func loadFile(path string) (*entity.AlertConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}

	target, err := parseHostTarget(fc.HostTargeted)
	if err != nil {
		return nil, err
	}

	return &entity.AlertConfig{
		Name:         fc.Name,
		Table:        fc.Table,
		Lookup:       fc.Lookup,
		Warn:         fc.Warn,
		Crit:         fc.Crit,
		WhereClause:  fc.WhereClause,
		Info:         fc.Info,
		Timing:       fc.Timing,
		HostTargeted: target,
	}, nil
}

// parseHostTarget parses the host_targeted field: the literal "ALL", or any
// other value taken as a specific host uuid.
func parseHostTarget(raw string) (entity.HostTarget, error) {
	if raw == "" {
		return entity.HostTarget{}, fmt.Errorf("expander: host_targeted is required")
	}
	if raw == string(entity.HostTargetAll) {
		return entity.HostTarget{Kind: entity.HostTargetAll}, nil
	}
	return entity.HostTarget{Kind: entity.HostTargetSpecific, HostUUID: raw}, nil
}

// Expand materialises every AlertConfig against the given host list. ALL
// yields one Alert per host; SPECIFIC yields exactly one Alert, or an error
// if no such host exists.
func Expand(configs []*entity.AlertConfig, hosts []*entity.Host) ([]*entity.Alert, error) {
	byUUID := make(map[string]*entity.Host, len(hosts))
	for _, h := range hosts {
		byUUID[h.UUID] = h
	}

	var alerts []*entity.Alert
	for _, cfg := range configs {
		switch cfg.HostTargeted.Kind {
		case entity.HostTargetSpecific:
			host, ok := byUUID[cfg.HostTargeted.HostUUID]
			if !ok {
				return nil, fmt.Errorf("expander: the host %s in the AlertConfig %s does not exist", cfg.HostTargeted.HostUUID, cfg.Name)
			}
			alert, err := cfg.Expand(host.UUID, host.Hostname)
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, alert)
		case entity.HostTargetAll:
			for _, host := range hosts {
				alert, err := cfg.Expand(host.UUID, host.Hostname)
				if err != nil {
					return nil, err
				}
				alerts = append(alerts, alert)
			}
		}
	}
	return alerts, nil
}

// ExpandOne materialises every AlertConfig matching host (ALL, or
// SPECIFIC(host.UUID)) for that single host. Used by the CDC reconciler's
// host-insert path, where re-scanning the whole fleet would be wasteful.
func ExpandOne(configs []*entity.AlertConfig, host *entity.Host) ([]*entity.Alert, error) {
	var alerts []*entity.Alert
	for _, cfg := range configs {
		if !cfg.HostTargeted.Matches(host.UUID) {
			continue
		}
		alert, err := cfg.Expand(host.UUID, host.Hostname)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
