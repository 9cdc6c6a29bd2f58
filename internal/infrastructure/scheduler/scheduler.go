// Package scheduler owns one periodic evaluator task per active alert, with
// supervised restart on panic/error, the way alerts.rs's
// start_monitoring/RUNNING_CHILDREN pair does with a Bastion supervisor in
// the original daemon. Here the supervisor is a thin goroutine wrapper
// instead of an actor framework.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/speculare-cloud/alertsd/internal/application/alertsvc"
	"github.com/speculare-cloud/alertsd/internal/domain/compiler"
	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/metrics"
)

// initialBackoff is the first restart delay after a task panics or exits
// with an error; it grows linearly on each consecutive failure.
const initialBackoff = 3 * time.Second

// task is one running alert evaluator: its cancel func and the snapshot it
// was started with.
type task struct {
	cancel context.CancelFunc
	alert  *entity.Alert
}

// Scheduler is the process-wide running-task registry: a mapping from alert
// id to a cancellable task handle. Created by New, it is the single source
// of truth for "what is currently being monitored".
type Scheduler struct {
	mu    sync.RWMutex
	tasks map[entity.ID]*task

	db      *sqlx.DB
	service *alertsvc.Service
}

// New builds an empty Scheduler.
func New(db *sqlx.DB, service *alertsvc.Service) *Scheduler {
	return &Scheduler{
		tasks:   make(map[entity.ID]*task),
		db:      db,
		service: service,
	}
}

// Start compiles alert, spawns a supervised task for it, and inserts the
// handle under alert.ID. If a handle already exists it is replaced: the old
// one is cancelled before the new one is inserted, so S4 (CDC update
// replaces task) never leaves two tasks running for the same id.
func (s *Scheduler) Start(alert *entity.Alert) error {
	compiled, err := compiler.Compile(alert)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, alert: alert}

	s.mu.Lock()
	if old, ok := s.tasks[alert.ID]; ok {
		old.cancel()
	}
	s.tasks[alert.ID] = t
	s.mu.Unlock()
	metrics.SchedulerTasksRunning.Set(float64(s.Running()))

	go s.supervise(ctx, alert, compiled)
	return nil
}

// Stop removes the handle for alertID and cancels its task. Safe to call
// with no matching entry.
func (s *Scheduler) Stop(alertID entity.ID) {
	s.mu.Lock()
	t, ok := s.tasks[alertID]
	if ok {
		delete(s.tasks, alertID)
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
	}
	metrics.SchedulerTasksRunning.Set(float64(s.Running()))
}

// Running reports how many tasks are currently scheduled (used for the
// ambient scheduler gauge).
func (s *Scheduler) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// supervise runs the tick loop for one alert, restarting it with linear
// back-off if it panics. Cancellation is checked at tick boundaries only:
// an in-flight tick may finish and commit its database effects, per the
// cancellation semantics of the scheduler's suspension points.
func (s *Scheduler) supervise(ctx context.Context, alert *entity.Alert, compiled *compiler.Compiled) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if s.runTicks(ctx, alert, compiled) {
			// context cancelled inside the loop: clean exit, no restart.
			return
		}
		log.Warn().
			Str("alert_name", alert.Name).
			Str("host_uuid", alert.HostUUID).
			Dur("backoff", backoff).
			Msg("scheduler: task exited, restarting after back-off")
		metrics.SchedulerTaskRestartsTotal.WithLabelValues(alert.Name).Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff += initialBackoff
	}
}

// runTicks runs the tick loop for one alert until it panics (returns false)
// or the context is cancelled (returns true). The first tick fires
// immediately after scheduling, then on every alert.Timing interval.
func (s *Scheduler) runTicks(ctx context.Context, alert *entity.Alert, compiled *compiler.Compiled) (cancelled bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("alert_name", alert.Name).
				Msg("scheduler: task panicked")
		}
	}()

	ticker := time.NewTicker(time.Duration(alert.Timing) * time.Second)
	defer ticker.Stop()

	s.service.Tick(ctx, s.db, alert, compiled)

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			s.service.Tick(ctx, s.db, alert, compiled)
		}
	}
}
