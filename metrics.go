package godbf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts record cache traffic and schema edits. A nil *Metrics is
// valid and records nothing, so one instance can be shared by many tables.
type Metrics struct {
	RecordsLoaded  prometheus.Counter
	RecordsFlushed prometheus.Counter
	Seeks          *prometheus.CounterVec
	SchemaEdits    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RecordsLoaded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dbf_records_loaded_total",
				Help: "Records read from disk into the record cache",
			},
		),
		RecordsFlushed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dbf_records_flushed_total",
				Help: "Modified records written back from the record cache",
			},
		),
		Seeks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbf_record_seeks_total",
				Help: "Positioning before record writes, by outcome (performed or elided)",
			},
			[]string{"outcome"},
		),
		SchemaEdits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbf_schema_edits_total",
				Help: "Schema edits by operation and status",
			},
			[]string{"operation", "status"},
		),
	}
}

func (m *Metrics) recordLoaded() {
	if m == nil {
		return
	}
	m.RecordsLoaded.Inc()
}

func (m *Metrics) recordFlushed(seekElided bool) {
	if m == nil {
		return
	}
	m.RecordsFlushed.Inc()
	if seekElided {
		m.Seeks.WithLabelValues("elided").Inc()
	} else {
		m.Seeks.WithLabelValues("performed").Inc()
	}
}

func (m *Metrics) schemaEdit(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SchemaEdits.WithLabelValues(operation, status).Inc()
}
