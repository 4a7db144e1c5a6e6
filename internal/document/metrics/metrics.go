package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the document module.
// Tracks lifecycle counts, history growth, retries and operation durations.
type Metrics struct {
	DocumentsCreated      prometheus.Counter
	DocumentsDeleted      prometheus.Counter
	Transitions           *prometheus.CounterVec
	VersionsAppended      prometheus.Counter
	ConflictRetries       prometheus.Counter
	EventPublishFailures  prometheus.Counter
	AttachmentFailures    *prometheus.CounterVec
	OperationDuration     *prometheus.HistogramVec
	SequenceAllocDuration prometheus.Histogram
}

// New registers the document metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the document metrics with reg. Tests pass a
// fresh prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "docflow_documents_created_total",
			Help: "Total number of documents created",
		}),
		DocumentsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "docflow_documents_deleted_total",
			Help: "Total number of documents hard-deleted",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_document_mutations_total",
			Help: "Committed document mutations by action",
		}, []string{"action"}),
		VersionsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "docflow_versions_appended_total",
			Help: "Total number of version rows written",
		}),
		ConflictRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "docflow_conflict_retries_total",
			Help: "Mutations retried after losing a concurrency race",
		}),
		EventPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docflow_event_publish_failures_total",
			Help: "Lifecycle events that could not be delivered",
		}),
		AttachmentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_attachment_failures_total",
			Help: "Blob store failures by operation",
		}, []string{"op"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docflow_operation_duration_seconds",
			Help:    "Duration of document service operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		SequenceAllocDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docflow_sequence_allocation_duration_seconds",
			Help:    "Duration of document number allocation",
			Buckets: durationBuckets,
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.DocumentsCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.DocumentsDeleted.Inc()
}

// IncrementMutation records a committed mutation and the version row it wrote.
func (m *Metrics) IncrementMutation(action string) {
	m.Transitions.WithLabelValues(action).Inc()
	m.VersionsAppended.Inc()
}

func (m *Metrics) IncrementConflictRetry() {
	m.ConflictRetries.Inc()
}

func (m *Metrics) IncrementEventFailure() {
	m.EventPublishFailures.Inc()
}

func (m *Metrics) IncrementAttachmentFailure(op string) {
	m.AttachmentFailures.WithLabelValues(op).Inc()
}

// ObserveOperation records the duration of a service operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveSequenceAllocation records the duration of a number allocation.
func (m *Metrics) ObserveSequenceAllocation(start time.Time) {
	m.SequenceAllocDuration.Observe(time.Since(start).Seconds())
}
