package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes recorded on refreshTotal.
const (
	outcomeCompleted  = "completed"
	outcomeInProgress = "in_progress"
)

// Fetch error kinds recorded on fetchErrorsTotal.
const (
	fetchErrorPermission = "permission"
	fetchErrorOther      = "other"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runpanel_refresh_total",
		Help: "Repository refresh requests by outcome.",
	}, []string{"outcome"})
	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "runpanel_refresh_duration_seconds",
		Help:    "Wall time of completed repository refreshes.",
		Buckets: prometheus.DefBuckets,
	})
	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runpanel_fetch_errors_total",
		Help: "Per-tuple upstream fetch failures recorded in the run cache.",
	}, []string{"kind"})
	fetchedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "runpanel_fetched_runs_total",
		Help: "Runs received from upstream and merged into the run cache.",
	})
)
