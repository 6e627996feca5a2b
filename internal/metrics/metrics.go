// Package metrics exposes Prometheus instrumentation for meshing, grid files
// and zone storage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	strategyLabel  = "strategy"
	sectionLabel   = "section"
	resultLabel    = "result"
	backendLabel   = "backend"
	operationLabel = "operation"
)

// Result label values shared by the instrumented packages.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultCorrupt  = "corrupt"
	ResultError    = "error"
)

var (
	extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_extractions_total",
		Help: "The number of mesh extractions per cell visiting strategy.",
	}, []string{
		strategyLabel,
	})

	extractionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voxelmesh_extraction_duration_seconds",
		Help:    "The time to extract every section of one grid.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{
		strategyLabel,
	})

	triangles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_triangles_total",
		Help: "The number of triangles emitted into main and transition sections.",
	}, []string{
		sectionLabel,
	})

	gridLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_grid_loads_total",
		Help: "Grid decode attempts by result.",
	}, []string{
		resultLabel,
	})

	gridSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_grid_saves_total",
		Help: "Grid encode attempts by result.",
	}, []string{
		resultLabel,
	})

	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_store_operations_total",
		Help: "Zone store operations by backend and result.",
	}, []string{
		backendLabel,
		operationLabel,
		resultLabel,
	})
)

// InstrumentExtraction records one extraction that started at start.
func InstrumentExtraction(strategy string, start time.Time, main, transition int) {
	extractions.With(prometheus.Labels{
		strategyLabel: strategy,
	}).Inc()

	extractionLatency.With(prometheus.Labels{
		strategyLabel: strategy,
	}).Observe(time.Since(start).Seconds())

	triangles.With(prometheus.Labels{sectionLabel: "main"}).Add(float64(main))
	triangles.With(prometheus.Labels{sectionLabel: "transition"}).Add(float64(transition))
}

// InstrumentGridLoad counts a grid decode.
func InstrumentGridLoad(result string) {
	gridLoads.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}

// InstrumentGridSave counts a grid encode.
func InstrumentGridSave(result string) {
	gridSaves.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}

// InstrumentStore counts one store operation.
func InstrumentStore(backend, operation, result string) {
	storeOperations.
		With(prometheus.Labels{
			backendLabel:   backend,
			operationLabel: operation,
			resultLabel:    result,
		}).
		Inc()
}
