package media

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "reelbox"

// Metrics exports upload/delete counters. A nil *Metrics records nothing.
type Metrics struct {
	uploads        *promclient.CounterVec
	deletes        *promclient.CounterVec
	fallbacks      promclient.Counter
	remoteDuration *promclient.HistogramVec
}

func NewMetrics(reg promclient.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	m := &Metrics{
		uploads: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Media uploads persisted, by storage that holds the artifact.",
		}, []string{"storage"}),
		deletes: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deletes_total",
			Help:      "Media delete attempts, by outcome.",
		}, []string{"result"}),
		fallbacks: promclient.NewCounter(promclient.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_fallbacks_total",
			Help:      "Uploads that fell back to local storage after a remote failure.",
		}),
		remoteDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "remote_operation_duration_seconds",
			Help:      "Latency of remote storage calls including retries.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "outcome"}),
	}

	var err error
	if m.uploads, err = registerCounterVec(reg, m.uploads); err != nil {
		return nil, err
	}
	if m.deletes, err = registerCounterVec(reg, m.deletes); err != nil {
		return nil, err
	}
	if err := reg.Register(m.fallbacks); err != nil {
		are, ok := err.(promclient.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register fallback counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(promclient.Counter)
		if !ok {
			return nil, fmt.Errorf("register fallback counter: %w", err)
		}
		m.fallbacks = existing
	}
	if err := reg.Register(m.remoteDuration); err != nil {
		are, ok := err.(promclient.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register remote histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*promclient.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register remote histogram: %w", err)
		}
		m.remoteDuration = existing
	}
	return m, nil
}

func registerCounterVec(reg promclient.Registerer, c *promclient.CounterVec) (*promclient.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(promclient.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(*promclient.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register counter: %w", err)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) RecordUpload(storage string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(storage).Inc()
}

func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

func (m *Metrics) RecordDelete(result string) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRemote(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteDuration.WithLabelValues(operation, outcome).Observe(time.Since(started).Seconds())
}
