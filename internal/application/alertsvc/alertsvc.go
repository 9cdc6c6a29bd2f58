// Package alertsvc implements the incident state machine (C4): it compares
// a tick's query result against an alert's warn/crit thresholds and drives
// the Active -> Escalated -> Resolved transitions of an incident, the way
// analysis.rs's execute_analysis does in the original daemon.
package alertsvc

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/domain/compiler"
	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/domain/evaluator"
	"github.com/speculare-cloud/alertsd/internal/domain/repository"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/executor"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/logger"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/metrics"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/notifier"
)

// sender is the subset of *notifier.Notifier the incident state machine
// needs, narrowed so tests can exercise Tick against a fake.
type sender interface {
	Send(event notifier.Event, incident *entity.Incident)
}

var _ sender = (*notifier.Notifier)(nil)

// Service wires the query executor, threshold evaluator, incident
// repository and notifier into one tick operation.
type Service struct {
	incidents repository.IncidentRepository
	notifier  sender
}

// New builds a Service.
func New(incidents repository.IncidentRepository, n sender) *Service {
	return &Service{incidents: incidents, notifier: n}
}

// Tick runs one evaluation of alert: execute the compiled query, evaluate
// thresholds against the result, and drive the incident state machine.
// A NotFound query result skips the tick silently; any other execution
// error, an evaluation error or a failed incident lookup is logged and skips
// the tick, never the task.
func (s *Service) Tick(ctx context.Context, db *sqlx.DB, alert *entity.Alert, compiled *compiler.Compiled) {
	logger := logger.ForAlert(alert.ID.String(), alert.Name, alert.HostUUID)

	result, err := executor.Execute(ctx, db, compiled, alert.HostUUID)
	if err != nil {
		if errors.Is(err, executor.ErrNotFound) {
			return
		}
		logger.Error().Err(err).Msg("alertsvc: query execution failed, skipping tick")
		return
	}

	thresholds, err := evaluator.EvaluateThresholds(alert.Warn, alert.Crit, result)
	if err != nil {
		logger.Error().Err(err).Msg("alertsvc: threshold evaluation failed, skipping tick")
		return
	}

	prev, err := s.incidents.GetActiveByAlert(ctx, alert.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Msg("alertsvc: failed to look up active incident, skipping tick")
			return
		}
		prev = nil
	}

	if !thresholds.ShouldWarn && !thresholds.ShouldCrit {
		if prev != nil {
			prev.Resolve()
			if err := s.incidents.Update(ctx, prev); err != nil {
				logger.Error().Err(err).Msg("alertsvc: failed to resolve incident")
				return
			}
			s.notifier.Send(notifier.EventResolved, prev)
			metrics.IncidentsResolvedTotal.Inc()
		}
		return
	}

	sev := entity.SeverityWarning
	if thresholds.ShouldCrit {
		sev = entity.SeverityCritical
	}

	if prev != nil {
		escalated := prev.Escalate(sev, result)
		if err := s.incidents.Update(ctx, prev); err != nil {
			logger.Error().Err(err).Msg("alertsvc: failed to update incident")
			return
		}
		if escalated {
			s.notifier.Send(notifier.EventEscalated, prev)
			metrics.IncidentsEscalatedTotal.Inc()
		}
		return
	}

	incident := entity.NewIncident(alert, sev, result)
	if err := s.incidents.Create(ctx, incident); err != nil {
		logger.Error().Err(err).Msg("alertsvc: failed to create incident")
		return
	}
	s.notifier.Send(notifier.EventOpened, incident)
	metrics.IncidentsOpenedTotal.WithLabelValues(sev.String()).Inc()
}
