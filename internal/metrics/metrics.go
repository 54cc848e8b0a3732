// Package metrics holds the Prometheus collectors for record resolution.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "remote_resource"

// Metrics groups the resolution collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	fetches         *prometheus.CounterVec
	fetchErrors     *prometheus.CounterVec
	proxyLoads      *prometheus.CounterVec
	cacheLoads      *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg. A nil reg leaves
// them unregistered. Collectors already registered by a previous call are
// reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fetches_total",
			Help:      "Record store fetches by class and finder kind",
		}, []string{"class", "kind"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fetch_errors_total",
			Help:      "Record store fetches that returned an error",
		}, []string{"class", "kind"}),
		proxyLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_loads_total",
			Help:      "Association proxy loads by owner class and association",
		}, []string{"class", "association"}),
		cacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_loads_total",
			Help:      "Underlying loads performed by cached resolvables",
		}, []string{"outcome"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Finder resolution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class", "kind"}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.fetches, err = register(reg, m.fetches)
	if err != nil {
		return nil, err
	}
	m.fetchErrors, err = register(reg, m.fetchErrors)
	if err != nil {
		return nil, err
	}
	m.proxyLoads, err = register(reg, m.proxyLoads)
	if err != nil {
		return nil, err
	}
	m.cacheLoads, err = register(reg, m.cacheLoads)
	if err != nil {
		return nil, err
	}
	m.resolveDuration, err = register(reg, m.resolveDuration)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Fetch counts one store fetch and its outcome.
func (m *Metrics) Fetch(class, kind string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(class, kind).Inc()
	if err != nil {
		m.fetchErrors.WithLabelValues(class, kind).Inc()
	}
}

// ProxyLoad counts one association proxy load.
func (m *Metrics) ProxyLoad(class, association string) {
	if m == nil {
		return
	}
	m.proxyLoads.WithLabelValues(class, association).Inc()
}

// CacheLoad counts one underlying load behind a cached resolvable.
func (m *Metrics) CacheLoad(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cacheLoads.WithLabelValues(outcome).Inc()
}

// ObserveResolve records how long a finder resolution took.
func (m *Metrics) ObserveResolve(class, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(class, kind).Observe(elapsed.Seconds())
}

// Collectors returns every collector, for callers registering them manually.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.fetches, m.fetchErrors, m.proxyLoads, m.cacheLoads, m.resolveDuration}
}
