package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can run collectors side by side
// without default-registry collisions. It satisfies the metrics hooks of the
// stream hub, the coverage broker, and the NATS consumer.
type Collector struct {
	reg *prometheus.Registry

	FramesIngested prometheus.Counter
	IngestErrs     prometheus.Counter
	Broadcasts     prometheus.Counter
	PollRequests   prometheus.Counter

	StreamClients   prometheus.Gauge
	CoverageClients prometheus.Gauge
	NATSConnected   prometheus.Gauge
	ActiveTrips     prometheus.Gauge

	IngestDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FramesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_frames_ingested_total",
			Help: "Total position fixes accepted into the live feed.",
		}),
		IngestErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_ingest_errors_total",
			Help: "Total malformed or failed position fixes.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_broadcasts_total",
			Help: "Total trip frames broadcast to stream clients.",
		}),
		PollRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_poll_requests_total",
			Help: "Total poll-delta requests served.",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettrack_stream_clients",
			Help: "Currently connected trip stream websocket clients.",
		}),
		CoverageClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettrack_coverage_clients",
			Help: "Currently connected coverage websocket clients.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettrack_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettrack_active_trips",
			Help: "Number of vehicles with a live trip.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleettrack_ingest_duration_seconds",
			Help:    "Duration to decode and apply one position fix.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.FramesIngested, c.IngestErrs, c.Broadcasts, c.PollRequests,
		c.StreamClients, c.CoverageClients, c.NATSConnected, c.ActiveTrips,
		c.IngestDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// stream.ClientCounter
func (c *Collector) StreamClientsAdd(delta float64) { c.StreamClients.Add(delta) }

func (c *Collector) BroadcastInc() { c.Broadcasts.Inc() }

// streets.SessionCounter
func (c *Collector) CoverageClientsAdd(delta float64) { c.CoverageClients.Add(delta) }

// ingest.ConsumerMetrics
func (c *Collector) FrameIngestedInc() { c.FramesIngested.Inc() }

func (c *Collector) IngestErrInc() { c.IngestErrs.Inc() }

func (c *Collector) IngestObserve(d time.Duration) { c.IngestDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) PollRequestInc() { c.PollRequests.Inc() }

// live.TripGauge
func (c *Collector) ActiveTripsSet(n float64) { c.ActiveTrips.Set(n) }
