package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"backend-fleettrack/internal/live"
	"backend-fleettrack/internal/tracker"

	"github.com/nats-io/nats.go"
)

// PositionMessage is the wire format vehicles publish on
// fleet.positions.{vehicleId}.
type PositionMessage struct {
	VehicleID string    `json:"vehicleId"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedMps  float64   `json:"speedMps"`
	Event     string    `json:"event,omitempty"`
	TripEnd   bool      `json:"tripEnd,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TripFeed is the slice of the live service the consumer drives.
// *live.Service satisfies it.
type TripFeed interface {
	Append(ctx context.Context, fix live.Fix) (tracker.Snapshot, error)
}

// ConsumerMetrics is the metrics hook for the NATS side of ingestion.
type ConsumerMetrics interface {
	FrameIngestedInc()
	IngestErrInc()
	IngestObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

type noopMetrics struct{}

func (noopMetrics) FrameIngestedInc()           {}
func (noopMetrics) IngestErrInc()               {}
func (noopMetrics) IngestObserve(time.Duration) {}
func (noopMetrics) NATSSetConnected(bool)       {}

const subjectPattern = "fleet.positions.>"

// Consumer subscribes to the fleet position subjects and feeds each decoded
// fix into the live trip service. Malformed messages are logged and dropped.
type Consumer struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	feed    TripFeed
	metrics ConsumerMetrics
	timeout time.Duration
}

// Connect dials NATS with the reconnect handlers wired to metrics.
func Connect(url string, m ConsumerMetrics) (*nats.Conn, error) {
	if m == nil {
		m = noopMetrics{}
	}
	nc, err := nats.Connect(url,
		nats.Name("fleettrack-api"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			m.NATSSetConnected(false)
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			m.NATSSetConnected(true)
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			m.NATSSetConnected(false)
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	m.NATSSetConnected(true)
	return nc, nil
}

func NewConsumer(nc *nats.Conn, feed TripFeed, m ConsumerMetrics) *Consumer {
	if m == nil {
		m = noopMetrics{}
	}
	return &Consumer{nc: nc, feed: feed, metrics: m, timeout: 5 * time.Second}
}

func (c *Consumer) Start() error {
	sub, err := c.nc.Subscribe(subjectPattern, c.handle)
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
}

func (c *Consumer) handle(msg *nats.Msg) {
	start := time.Now()

	var pos PositionMessage
	if err := json.Unmarshal(msg.Data, &pos); err != nil {
		log.Printf("ingest: dropping malformed message on %s: %v", msg.Subject, err)
		c.metrics.IngestErrInc()
		return
	}
	if pos.VehicleID == "" {
		pos.VehicleID = vehicleIDFromSubject(msg.Subject)
	}
	if pos.VehicleID == "" {
		log.Printf("ingest: dropping message without vehicle id on %s", msg.Subject)
		c.metrics.IngestErrInc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_, err := c.feed.Append(ctx, live.Fix{
		VehicleID: pos.VehicleID,
		Lat:       pos.Lat,
		Lon:       pos.Lon,
		SpeedKmh:  pos.SpeedMps * 3.6,
		Event:     pos.Event,
		TripEnd:   pos.TripEnd,
		Timestamp: pos.Timestamp,
	})
	c.metrics.IngestObserve(time.Since(start))
	if err != nil {
		log.Printf("ingest: appending fix for %s: %v", pos.VehicleID, err)
		c.metrics.IngestErrInc()
		return
	}
	c.metrics.FrameIngestedInc()
}

func vehicleIDFromSubject(subject string) string {
	// fleet.positions.{vehicleId}
	const prefix = "fleet.positions."
	if len(subject) <= len(prefix) {
		return ""
	}
	return subject[len(prefix):]
}
