// Package metrics exports cache activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/stats"
)

// StatsSource is anything that can report a stats snapshot; *cache.Cache does.
type StatsSource interface {
	Stats() stats.Stats
}

// Collector holds the Prometheus series for one cache.
type Collector struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

/*
New registers the cache series on reg under namespace.
Gauges are read from src at scrape time; counters move through the hooks
installed by Attach.

If reg is nil a fresh registry is used. Use prometheus.DefaultRegisterer to
expose the series next to the Go runtime metrics.
*/
func New(reg prometheus.Registerer, namespace, cacheName string, src StatsSource) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	labels := prometheus.Labels{"cache": cacheName}
	f := promauto.With(reg)

	c := &Collector{
		// hits counts lookups that found a live entry.
		hits: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "hits_total",
			Help:        "Total number of cache hits",
			ConstLabels: labels,
		}),

		// misses counts lookups that found nothing or an expired entry.
		misses: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "misses_total",
			Help:        "Total number of cache misses",
			ConstLabels: labels,
		}),

		// evictions counts entries leaving the cache, by reason.
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "evictions_total",
			Help:        "Total number of entries removed, by reason (capacity, expired, invalidated)",
			ConstLabels: labels,
		}, []string{"reason"}),

		gatherer: gatherer,
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "entries",
		Help:        "Current number of cached entries",
		ConstLabels: labels,
	}, func() float64 { return float64(src.Stats().Size) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "hit_ratio",
		Help:        "hits / (hits + misses) since the last clear",
		ConstLabels: labels,
	}, func() float64 { return src.Stats().HitRate })

	return c
}

// Attach subscribes the collector to bus. The returned Deregister detaches it.
func (c *Collector) Attach(bus *hooks.Bus, priority int) hooks.Deregister {
	undo := []hooks.Deregister{
		bus.RegisterNotification(hooks.OnHit, func(hooks.Event) error {
			c.hits.Inc()
			return nil
		}, priority),
		bus.RegisterNotification(hooks.OnMiss, func(hooks.Event) error {
			c.misses.Inc()
			return nil
		}, priority),
		bus.RegisterNotification(hooks.OnEvict, func(ev hooks.Event) error {
			c.evictions.WithLabelValues(ev.Reason.String()).Inc()
			return nil
		}, priority),
	}
	return func() {
		for _, d := range undo {
			d()
		}
	}
}

// Handler serves the registry the collector was registered on.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
