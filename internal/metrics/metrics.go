// Package metrics collects pipeline counters via Prometheus client types and
// snapshots them to structured logs at shutdown (spec §7's "counters for
// attempted vs. emitted are logged at shutdown" requirement). No /metrics
// HTTP server is exposed — that's peripheral functionality out of scope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"proxyprobe/internal/logging"
)

// Collector holds every counter the pipeline touches, grouped by stage.
type Collector struct {
	sourcesAttempted prometheus.Counter
	sourcesFailed    prometheus.Counter

	proxiesFetched     prometheus.Counter
	proxiesDeduped     prometheus.Counter
	proxiesGeoFiltered prometheus.Counter

	validatorProbesAttempted *prometheus.CounterVec // label: protocol family
	validatorProbesConfirmed *prometheus.CounterVec // label: protocol family

	proxiesEmitted prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector builds a Collector with its own private registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.init()
	return c
}

func (c *Collector) init() {
	c.sourcesAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_sources_attempted_total",
		Help: "Total number of provider sources fetched",
	})
	c.sourcesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_sources_failed_total",
		Help: "Total number of provider sources that failed to fetch or parse",
	})
	c.proxiesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_proxies_fetched_total",
		Help: "Total number of candidate proxies scraped from all sources",
	})
	c.proxiesDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_proxies_deduped_total",
		Help: "Total number of candidates discarded as duplicate ip:port pairs",
	})
	c.proxiesGeoFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_proxies_geo_filtered_total",
		Help: "Total number of candidates discarded by the country filter",
	})
	c.validatorProbesAttempted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyprobe_validator_probes_attempted_total",
		Help: "Total number of validator probes attempted, by protocol family",
	}, []string{"protocol"})
	c.validatorProbesConfirmed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyprobe_validator_probes_confirmed_total",
		Help: "Total number of validator probes that confirmed the protocol, by family",
	}, []string{"protocol"})
	c.proxiesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyprobe_proxies_emitted_total",
		Help: "Total number of proxies emitted from the validator to the final consumer",
	})

	c.registry.MustRegister(
		c.sourcesAttempted,
		c.sourcesFailed,
		c.proxiesFetched,
		c.proxiesDeduped,
		c.proxiesGeoFiltered,
		c.validatorProbesAttempted,
		c.validatorProbesConfirmed,
		c.proxiesEmitted,
	)
}

func (c *Collector) SourceAttempted() { c.sourcesAttempted.Inc() }
func (c *Collector) SourceFailed()    { c.sourcesFailed.Inc() }

func (c *Collector) ProxyFetched()     { c.proxiesFetched.Inc() }
func (c *Collector) ProxyDeduped()     { c.proxiesDeduped.Inc() }
func (c *Collector) ProxyGeoFiltered() { c.proxiesGeoFiltered.Inc() }

func (c *Collector) ValidatorProbeAttempted(protocol string) {
	c.validatorProbesAttempted.WithLabelValues(protocol).Inc()
}
func (c *Collector) ValidatorProbeConfirmed(protocol string) {
	c.validatorProbesConfirmed.WithLabelValues(protocol).Inc()
}

func (c *Collector) ProxyEmitted() { c.proxiesEmitted.Inc() }

// Registry exposes the underlying Prometheus registry, e.g. for tests that
// want to assert against it directly.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// LogSummary snapshots the six scalar counters (sources attempted/failed,
// proxies fetched/deduped/geo-filtered/emitted) through testutil.ToFloat64
// and emits them together as one structured log line, in place of a live
// /metrics endpoint. The per-protocol validator probe counters are not
// included.
func (c *Collector) LogSummary(logger *logging.Logger) {
	logger.Info("metrics summary",
		"sources_attempted", testutil.ToFloat64(c.sourcesAttempted),
		"sources_failed", testutil.ToFloat64(c.sourcesFailed),
		"proxies_fetched", testutil.ToFloat64(c.proxiesFetched),
		"proxies_deduped", testutil.ToFloat64(c.proxiesDeduped),
		"proxies_geo_filtered", testutil.ToFloat64(c.proxiesGeoFiltered),
		"proxies_emitted", testutil.ToFloat64(c.proxiesEmitted),
	)
}
