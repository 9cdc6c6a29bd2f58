// Package metrics provides the daemon's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics.
var (
	SchedulerTasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertsd_scheduler_tasks_running",
			Help: "Number of per-alert evaluator tasks currently scheduled",
		},
	)

	SchedulerTaskRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsd_scheduler_task_restarts_total",
			Help: "Total number of supervised evaluator task restarts, by alert name",
		},
		[]string{"alert_name"},
	)
)

// Incident metrics.
var (
	IncidentsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsd_incidents_opened_total",
			Help: "Total number of incidents opened, by severity",
		},
		[]string{"severity"},
	)

	IncidentsEscalatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsd_incidents_escalated_total",
			Help: "Total number of incidents escalated from warning to critical",
		},
	)

	IncidentsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsd_incidents_resolved_total",
			Help: "Total number of incidents resolved",
		},
	)
)

// CDC metrics.
var (
	CDCReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsd_cdc_reconnects_total",
			Help: "Total number of CDC feed reconnect attempts",
		},
	)
)
