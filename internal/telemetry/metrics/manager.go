package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterActivitiesSaved    prometheus.Counter
	CounterTrackPointsSaved   prometheus.Counter
	CounterValidationFailures prometheus.Counter
	CounterStorageFailures    *prometheus.CounterVec
	CounterHandlerPanics      prometheus.Counter

	// gauges
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramStoreOpDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("activitytracker", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("activitytracker", "test", reg), reg
}

// NewDiscardManager returns a manager on a private registry nobody gathers from.
func NewDiscardManager() *Manager {
	return NewManager("activitytracker", "discard", prometheus.NewRegistry())
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterActivitiesSaved := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "activities_saved",
		Help:      "The total number of persisted activities",
	})
	counterTrackPointsSaved := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "track_points_saved",
		Help:      "The total number of committed track points",
	})
	counterValidationFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "track_point_validation_failures",
		Help:      "The total number of saves rejected due to out of range track points",
	})
	counterStorageFailures := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "storage_failures",
		Help:      "The total number of store operations failed by the database",
	}, []string{"op"})

	counterHandlerPanics := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handler_panics",
		Help:      "The total number of recovered panics in http handlers",
	})

	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramStoreOpDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "store_op_duration_seconds",
		Help:      "Histogram of activity store operation durations in seconds",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op", "outcome"})

	return &Manager{
		CounterActivitiesSaved:    counterActivitiesSaved,
		CounterTrackPointsSaved:   counterTrackPointsSaved,
		CounterValidationFailures: counterValidationFailures,
		CounterStorageFailures:    counterStorageFailures,
		CounterHandlerPanics:      counterHandlerPanics,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistogramStoreOpDuration:  histogramStoreOpDuration,
	}
}
