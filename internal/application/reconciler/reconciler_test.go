package reconciler_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speculare-cloud/alertsd/internal/application/reconciler"
	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/cdc"
)

// fakeAlertRepo is a minimal in-memory repository.AlertRepository.
type fakeAlertRepo struct {
	rows map[entity.ID]*entity.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{rows: make(map[entity.ID]*entity.Alert)}
}

func (f *fakeAlertRepo) Upsert(ctx context.Context, alert *entity.Alert) error {
	f.rows[alert.ID] = alert
	return nil
}

func (f *fakeAlertRepo) Delete(ctx context.Context, id entity.ID) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeAlertRepo) DeleteByHost(ctx context.Context, hostUUID string) error {
	for id, a := range f.rows {
		if a.HostUUID == hostUUID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeAlertRepo) DeleteAll(ctx context.Context) error {
	f.rows = make(map[entity.ID]*entity.Alert)
	return nil
}

func (f *fakeAlertRepo) List(ctx context.Context) ([]*entity.Alert, error) {
	out := make([]*entity.Alert, 0, len(f.rows))
	for _, a := range f.rows {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAlertRepo) GetByID(ctx context.Context, id entity.ID) (*entity.Alert, error) {
	a, ok := f.rows[id]
	if !ok {
		return nil, assert.AnError
	}
	return a, nil
}

// fakeScheduler records start/stop calls instead of running real tasks.
type fakeScheduler struct {
	started map[entity.ID]*entity.Alert
	stopped []entity.ID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{started: make(map[entity.ID]*entity.Alert)}
}

func (f *fakeScheduler) Start(alert *entity.Alert) error {
	f.started[alert.ID] = alert
	return nil
}

func (f *fakeScheduler) Stop(alertID entity.ID) {
	f.stopped = append(f.stopped, alertID)
	delete(f.started, alertID)
}

func rawValue(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func alertChange(t *testing.T, kind cdc.Kind, name, hostUUID string, timing int) cdc.Change {
	t.Helper()
	return cdc.Change{
		Kind:        kind,
		Table:       "alerts",
		ColumnNames: []string{"name", "host_uuid", "hostname", "table_name", "lookup", "warn", "crit", "timing", "active", "where_clause", "info"},
		ColumnValues: []json.RawMessage{
			rawValue(t, name),
			rawValue(t, hostUUID),
			rawValue(t, "web-1"),
			rawValue(t, "cpu_data"),
			rawValue(t, "avg abs 5m of usage_user"),
			rawValue(t, "$this > 50"),
			rawValue(t, "$this > 80"),
			rawValue(t, timing),
			rawValue(t, true),
			rawValue(t, ""),
			rawValue(t, ""),
		},
	}
}

func TestHandleAlertChange_Insert_StartsTask(t *testing.T) {
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	r := reconciler.New(alerts, sched, nil)

	r.HandleAlertChange(context.Background(), alertChange(t, cdc.KindInsert, "cpu_high", "h1", 60))

	id := entity.GenerateAlertID("h1", "cpu_high")
	assert.Contains(t, sched.started, id)
	assert.Contains(t, alerts.rows, id)
}

func TestHandleAlertChange_Update_ReplacesTask(t *testing.T) {
	// S4: CDC update must stop the old task and start a new one under the
	// same deterministic id, with the new timing.
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	r := reconciler.New(alerts, sched, nil)

	r.HandleAlertChange(context.Background(), alertChange(t, cdc.KindInsert, "cpu_high", "h1", 60))
	r.HandleAlertChange(context.Background(), alertChange(t, cdc.KindUpdate, "cpu_high", "h1", 5))

	id := entity.GenerateAlertID("h1", "cpu_high")
	require.Contains(t, sched.started, id)
	assert.Equal(t, 5, sched.started[id].Timing)
	assert.Contains(t, sched.stopped, id)
}

func TestHandleAlertChange_Delete_StopsAndRemoves(t *testing.T) {
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	r := reconciler.New(alerts, sched, nil)

	r.HandleAlertChange(context.Background(), alertChange(t, cdc.KindInsert, "cpu_high", "h1", 60))
	r.HandleAlertChange(context.Background(), alertChange(t, cdc.KindDelete, "cpu_high", "h1", 60))

	id := entity.GenerateAlertID("h1", "cpu_high")
	assert.NotContains(t, sched.started, id)
	assert.NotContains(t, alerts.rows, id)
	assert.Contains(t, sched.stopped, id)
}

func TestHandleAlertChange_MalformedFrame_DoesNotPanic(t *testing.T) {
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	r := reconciler.New(alerts, sched, nil)

	bad := cdc.Change{Kind: cdc.KindInsert, ColumnNames: []string{"a", "b"}, ColumnValues: []json.RawMessage{rawValue(t, "x")}}

	assert.NotPanics(t, func() { r.HandleAlertChange(context.Background(), bad) })
	assert.Empty(t, sched.started)
}

func hostChange(t *testing.T, kind cdc.Kind, uuid, hostname string) cdc.Change {
	t.Helper()
	return cdc.Change{
		Kind:         kind,
		Table:        "hosts",
		ColumnNames:  []string{"uuid", "hostname"},
		ColumnValues: []json.RawMessage{rawValue(t, uuid), rawValue(t, hostname)},
	}
}

func TestHandleHostChange_Insert_ExpandsMatchingConfigs(t *testing.T) {
	// S5: a file-sourced ALL config expands into a new alert for the
	// inserted host and starts monitoring it.
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	configs := []*entity.AlertConfig{{
		Name: "disk_full", Table: "disk_data", Lookup: "avg pct 5m of free_bytes over total_bytes",
		Warn: "$this < 20", Crit: "$this < 5", Timing: 60,
		HostTargeted: entity.HostTarget{Kind: entity.HostTargetAll},
	}}
	r := reconciler.New(alerts, sched, configs)

	r.HandleHostChange(context.Background(), hostChange(t, cdc.KindInsert, "H", "new-host"))

	id := entity.GenerateAlertID("H", "disk_full")
	assert.Contains(t, sched.started, id)
	assert.Contains(t, alerts.rows, id)
}

func TestHandleHostChange_Delete_StopsAllAlertsForHost(t *testing.T) {
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	configs := []*entity.AlertConfig{{
		Name: "disk_full", Table: "disk_data", Lookup: "avg pct 5m of free_bytes over total_bytes",
		Warn: "$this < 20", Crit: "$this < 5", Timing: 60,
		HostTargeted: entity.HostTarget{Kind: entity.HostTargetAll},
	}}
	r := reconciler.New(alerts, sched, configs)
	r.HandleHostChange(context.Background(), hostChange(t, cdc.KindInsert, "H", "new-host"))

	r.HandleHostChange(context.Background(), hostChange(t, cdc.KindDelete, "H", "new-host"))

	id := entity.GenerateAlertID("H", "disk_full")
	assert.NotContains(t, sched.started, id)
	assert.Contains(t, sched.stopped, id)
	assert.NotContains(t, alerts.rows, id)
}

func TestSetConfigCache_ReplacesAtomically(t *testing.T) {
	alerts := newFakeAlertRepo()
	sched := newFakeScheduler()
	r := reconciler.New(alerts, sched, nil)

	r.SetConfigCache([]*entity.AlertConfig{{
		Name: "disk_full", Table: "disk_data", Lookup: "avg pct 5m of free_bytes over total_bytes",
		Warn: "$this < 20", Crit: "$this < 5", Timing: 60,
		HostTargeted: entity.HostTarget{Kind: entity.HostTargetAll},
	}})

	r.HandleHostChange(context.Background(), hostChange(t, cdc.KindInsert, "H2", "host-2"))

	id := entity.GenerateAlertID("H2", "disk_full")
	assert.Contains(t, sched.started, id)
}
