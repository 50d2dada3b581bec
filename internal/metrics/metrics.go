// Package metrics provides Prometheus counters for conversion runs
package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "termbank"

// Metrics holds the counters of one process. Each Metrics has its own
// registry so tests and repeated runs do not collide.
type Metrics struct {
	registry *prometheus.Registry

	PagesProcessed   *prometheus.CounterVec
	PagesSkipped     *prometheus.CounterVec
	PagesUnmatched   *prometheus.CounterVec
	EntriesWritten   *prometheus.CounterVec
	ChunksFlushed    *prometheus.CounterVec
	MalformedRecords *prometheus.CounterVec
}

// New creates and registers all counters.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.PagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Total number of dictionary pages processed",
		},
		[]string{"dictionary"},
	)
	m.PagesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_skipped_total",
			Help:      "Pages that produced no entry, by reason",
		},
		[]string{"dictionary", "reason"},
	)
	m.PagesUnmatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_unmatched_total",
			Help:      "Pages whose headwords got no reading and had no manual override",
		},
		[]string{"dictionary"},
	)
	m.EntriesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_written_total",
			Help:      "Total number of term bank entries handed to the sink",
		},
		[]string{"dictionary"},
	)
	m.ChunksFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_flushed_total",
			Help:      "Total number of term bank files written",
		},
		[]string{"dictionary"},
	)
	m.MalformedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_malformed_records_total",
			Help:      "Index records skipped while loading, by index file",
		},
		[]string{"dictionary", "index"},
	)

	m.registry.MustRegister(
		m.PagesProcessed,
		m.PagesSkipped,
		m.PagesUnmatched,
		m.EntriesWritten,
		m.ChunksFlushed,
		m.MalformedRecords,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// For returns a recorder bound to one dictionary.
func (m *Metrics) For(dictionary string) *Recorder {
	return &Recorder{m: m, dictionary: dictionary}
}

// Recorder counts the events of one dictionary conversion. It satisfies
// pipeline.Recorder.
type Recorder struct {
	m          *Metrics
	dictionary string
}

func (r *Recorder) PageProcessed() {
	r.m.PagesProcessed.WithLabelValues(r.dictionary).Inc()
}

func (r *Recorder) PageSkipped(reason string) {
	r.m.PagesSkipped.WithLabelValues(r.dictionary, reason).Inc()
}

func (r *Recorder) PageUnmatched() {
	r.m.PagesUnmatched.WithLabelValues(r.dictionary).Inc()
}

func (r *Recorder) EntryWritten() {
	r.m.EntriesWritten.WithLabelValues(r.dictionary).Inc()
}

// ChunkFlushed matches the sink's flush hook.
func (r *Recorder) ChunkFlushed(_ string, _ int) {
	r.m.ChunksFlushed.WithLabelValues(r.dictionary).Inc()
}

// MalformedRecords adds n skipped records of the named index file.
func (r *Recorder) MalformedRecords(index string, n int) {
	if n <= 0 {
		return
	}
	r.m.MalformedRecords.WithLabelValues(r.dictionary, index).Add(float64(n))
}

// Line is one row of a run summary.
type Line struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Summary flattens the non-zero counters of dictionary into sorted lines.
func (m *Metrics) Summary(dictionary string) ([]Line, error) {
	families, err := m.Gather()
	if err != nil {
		return nil, err
	}
	var out []Line
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["dictionary"] != dictionary {
				continue
			}
			v := metric.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			delete(labels, "dictionary")
			out = append(out, Line{Name: f.GetName(), Labels: labels, Value: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
