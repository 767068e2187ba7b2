// Package prometheus exports gateway operation metrics through client_golang.
package prometheus

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-gateways/core"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// DefaultBuckets suit remote gateway calls measured in milliseconds.
var DefaultBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

type Config struct {
	Namespace string
	Buckets   []float64
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Recorder lazily creates one vector per metric name. The label keys seen on
// the first observation fix that vector's labels; later observations fill
// missing keys with "" and drop unknown ones.
type Recorder struct {
	cfg Config

	mu         sync.Mutex
	counters   map[string]*vector[*prometheus.CounterVec]
	histograms map[string]*vector[*prometheus.HistogramVec]
}

type vector[V any] struct {
	vec    V
	labels []string
}

func NewRecorder(cfg Config) *Recorder {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets
	}
	return &Recorder{
		cfg:        cfg,
		counters:   map[string]*vector[*prometheus.CounterVec]{},
		histograms: map[string]*vector[*prometheus.HistogramVec]{},
	}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	v, err := r.counter(name, tags)
	if err != nil {
		return
	}
	v.vec.With(labelValues(v.labels, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	v, err := r.histogram(name, tags)
	if err != nil {
		return
	}
	v.vec.With(labelValues(v.labels, tags)).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*vector[*prometheus.CounterVec], error) {
	metric := MetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.counters[metric]; ok {
		return v, nil
	}
	labels := labelKeys(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.cfg.Namespace,
		Name:      metric,
		Help:      "Gateway operation counter " + name + ".",
	}, labels)
	if err := r.cfg.Registerer.Register(vec); err != nil {
		existing, ok := alreadyRegistered[*prometheus.CounterVec](err)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	v := &vector[*prometheus.CounterVec]{vec: vec, labels: labels}
	r.counters[metric] = v
	return v, nil
}

func (r *Recorder) histogram(name string, tags map[string]string) (*vector[*prometheus.HistogramVec], error) {
	metric := MetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.histograms[metric]; ok {
		return v, nil
	}
	labels := labelKeys(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.cfg.Namespace,
		Name:      metric,
		Help:      "Gateway operation histogram " + name + ".",
		Buckets:   r.cfg.Buckets,
	}, labels)
	if err := r.cfg.Registerer.Register(vec); err != nil {
		existing, ok := alreadyRegistered[*prometheus.HistogramVec](err)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	v := &vector[*prometheus.HistogramVec]{vec: vec, labels: labels}
	r.histograms[metric] = v
	return v, nil
}

func alreadyRegistered[V prometheus.Collector](err error) (V, bool) {
	var zero V
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return zero, false
	}
	existing, ok := are.ExistingCollector.(V)
	return existing, ok
}

// MetricName maps dotted core metric names onto the Prometheus charset, so
// gateways.purchase.total becomes gateways_purchase_total.
func MetricName(name string) string {
	return invalidNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, MetricName(key))
	}
	sort.Strings(keys)
	return keys
}

func labelValues(keys []string, tags map[string]string) prometheus.Labels {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[MetricName(key)] = value
	}
	out := make(prometheus.Labels, len(keys))
	for _, key := range keys {
		out[key] = normalized[key]
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
