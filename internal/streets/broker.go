package streets

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"backend-fleettrack/internal/shared/geo"
	"backend-fleettrack/internal/tracker"
)

// AreaLoader provides the segment catalog for one area. *Catalog satisfies it.
type AreaLoader interface {
	LoadArea(ctx context.Context, areaID string) (map[string]Segment, float64, error)
}

// SessionCounter is the metrics hook for active coverage subscribers.
type SessionCounter interface {
	CoverageClientsAdd(delta float64)
}

type noopSessions struct{}

func (noopSessions) CoverageClientsAdd(float64) {}

type updateData struct {
	CoveredSegments    []string `json:"covered_segments"`
	CoveredLength      float64  `json:"covered_length"`
	TotalLength        float64  `json:"total_length"`
	CoveragePercentage float64  `json:"coverage_percentage"`
}

type outMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    *updateData `json:"data,omitempty"`
}

// BrokerClient is one websocket subscriber. Slow clients are skipped rather
// than blocking fix ingestion.
type BrokerClient struct {
	AreaID string
	Send   chan []byte
}

type areaSession struct {
	segments    map[string]Segment
	totalLength float64

	covered       map[string]struct{}
	coveredLength float64
	clients       map[*BrokerClient]struct{}
}

// Broker runs the server side of coverage sessions: one session per area with
// at least one subscriber. Each accepted fix pair is keyed and matched against
// the area catalog; newly traversed segments trigger a coverage_update push.
// It observes the live fix stream via live.Service's observer hook.
type Broker struct {
	loader    AreaLoader
	precision int
	metrics   SessionCounter

	mu       sync.Mutex
	sessions map[string]*areaSession
}

func NewBroker(loader AreaLoader, precision int, metrics SessionCounter) *Broker {
	if metrics == nil {
		metrics = noopSessions{}
	}
	return &Broker{
		loader:    loader,
		precision: precision,
		metrics:   metrics,
		sessions:  make(map[string]*areaSession),
	}
}

// Subscribe attaches a client to the area session, creating the session (and
// loading the catalog) on first use. The current coverage state is pushed to
// the new client immediately.
func (b *Broker) Subscribe(ctx context.Context, areaID string) (*BrokerClient, error) {
	b.mu.Lock()
	session, ok := b.sessions[areaID]
	b.mu.Unlock()

	if !ok {
		segments, total, err := b.loader.LoadArea(ctx, areaID)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		// a concurrent subscriber may have raced the load
		if existing, again := b.sessions[areaID]; again {
			session = existing
		} else {
			session = &areaSession{
				segments:    segments,
				totalLength: total,
				covered:     make(map[string]struct{}),
				clients:     make(map[*BrokerClient]struct{}),
			}
			b.sessions[areaID] = session
		}
		b.mu.Unlock()
	}

	client := &BrokerClient{AreaID: areaID, Send: make(chan []byte, 16)}

	b.mu.Lock()
	session.clients[client] = struct{}{}
	payload := encodeUpdate(session)
	b.mu.Unlock()
	b.metrics.CoverageClientsAdd(1)

	client.Send <- payload
	return client, nil
}

// Unsubscribe detaches the client; the last client leaving ends the area
// session and discards its covered set. Idempotent.
func (b *Broker) Unsubscribe(client *BrokerClient) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session, ok := b.sessions[client.AreaID]
	if !ok {
		return
	}
	if _, registered := session.clients[client]; !registered {
		return
	}
	delete(session.clients, client)
	close(client.Send)
	b.metrics.CoverageClientsAdd(-1)
	if len(session.clients) == 0 {
		delete(b.sessions, client.AreaID)
	}
}

// ObserveFix keys the traversed leg and marks it covered in every active
// session whose catalog contains it. Implements live.FixObserver.
func (b *Broker) ObserveFix(vehicleID string, prev, curr tracker.Position) {
	key, ok := segmentKeyFor(prev, curr, b.precision)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, session := range b.sessions {
		segment, inArea := session.segments[key]
		if !inArea {
			continue
		}
		if _, done := session.covered[key]; done {
			continue
		}
		session.covered[key] = struct{}{}
		session.coveredLength += segment.LengthM
		payload := encodeUpdate(session)
		for client := range session.clients {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

// Notify pushes an info or error control message to the client, dropping it
// if the client's buffer is full.
func Notify(client *BrokerClient, msgType, message string) {
	payload, err := json.Marshal(outMessage{Type: msgType, Message: message})
	if err != nil {
		log.Printf("streets: encoding %s message: %v", msgType, err)
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

func encodeUpdate(session *areaSession) []byte {
	ids := make([]string, 0, len(session.covered))
	for key := range session.covered {
		ids = append(ids, session.segments[key].ID)
	}
	sort.Strings(ids)

	pct := 0.0
	if session.totalLength > 0 {
		pct = session.coveredLength / session.totalLength * 100
	}
	payload, _ := json.Marshal(outMessage{
		Type: "coverage_update",
		Data: &updateData{
			CoveredSegments:    ids,
			CoveredLength:      session.coveredLength,
			TotalLength:        session.totalLength,
			CoveragePercentage: pct,
		},
	})
	return payload
}

func segmentKeyFor(prev, curr tracker.Position, precision int) (string, bool) {
	return geo.SegmentKey(
		[]float64{prev.Lon, prev.Lat},
		[]float64{curr.Lon, curr.Lat},
		precision,
	)
}
