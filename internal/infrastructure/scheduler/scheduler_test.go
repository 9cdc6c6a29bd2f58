package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speculare-cloud/alertsd/internal/application/alertsvc"
	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/domain/repository"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/notifier"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/scheduler"
)

// fakeIncidents is a no-op repository.IncidentRepository: the scheduler
// tests below only care about task lifecycle, not incident bookkeeping.
type fakeIncidents struct{}

func (fakeIncidents) GetActiveByAlert(ctx context.Context, alertsID entity.ID) (*entity.Incident, error) {
	return nil, repository.ErrNotFound
}
func (fakeIncidents) Create(ctx context.Context, incident *entity.Incident) error { return nil }
func (fakeIncidents) Update(ctx context.Context, incident *entity.Incident) error { return nil }

type fakeSender struct{}

func (fakeSender) Send(event notifier.Event, incident *entity.Incident) {}

func testAlert(t *testing.T, name string, timing int) *entity.Alert {
	t.Helper()
	alert, err := entity.NewAlert(
		name, "11111111-1111-1111-1111-111111111111", "web-1",
		"cpu_data", "avg abs 5m of usage_user", "",
		"$this > 50", "$this > 80", timing, "",
	)
	require.NoError(t, err)
	return alert
}

// newTestScheduler wires a real alertsvc.Service against an sqlmock pool
// that answers every query with zero rows, so ticks always skip silently
// without touching real incident state.
func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	mock.MatchExpectationsInOrder(false)
	// Each Start call fires one tick immediately on the task's goroutine; Timing is set
	// large enough in every test below that the ticker never fires a second
	// one. A handful of identical expectations covers the occasional race
	// between an old task's in-flight first tick and a replacement Start.
	for i := 0; i < 10; i++ {
		mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"value"}))
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	service := alertsvc.New(fakeIncidents{}, fakeSender{})
	return scheduler.New(db, service)
}

func TestScheduler_StartAddsTaskToRegistry(t *testing.T) {
	s := newTestScheduler(t)
	alert := testAlert(t, "cpu_high", 3600)

	require.NoError(t, s.Start(alert))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, s.Running())
	s.Stop(alert.ID)
}

func TestScheduler_StopRemovesTask(t *testing.T) {
	s := newTestScheduler(t)
	alert := testAlert(t, "cpu_high", 3600)
	require.NoError(t, s.Start(alert))
	time.Sleep(10 * time.Millisecond)

	s.Stop(alert.ID)

	assert.Equal(t, 0, s.Running())
}

func TestScheduler_StopWithNoEntryIsSafe(t *testing.T) {
	s := newTestScheduler(t)

	assert.NotPanics(t, func() { s.Stop(entity.NewID()) })
}

func TestScheduler_StartTwiceReplacesOldTask(t *testing.T) {
	// S4: restarting an alert under the same id must never leave two tasks
	// registered; Running() stays at 1 across a replace.
	s := newTestScheduler(t)
	alert := testAlert(t, "cpu_high", 3600)

	require.NoError(t, s.Start(alert))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Start(alert))
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, s.Running())
	s.Stop(alert.ID)
}

func TestScheduler_CompileErrorIsReturnedAndNotRegistered(t *testing.T) {
	s := newTestScheduler(t)
	alert := testAlert(t, "bad_lookup", 60)
	alert.Lookup = "notanaggr abs 5m of cpu"

	err := s.Start(alert)

	require.Error(t, err)
	assert.Equal(t, 0, s.Running())
}
