package coverage

import (
	"encoding/json"
	"log"
	"sync"
)

// Session is a read-only view of one coverage activation. Aggregate lengths
// and percentage come from the server's canonical accounting; the store never
// derives them from its own segment set.
type Session struct {
	AreaID        string  `json:"area_id"`
	CoveredCount  int     `json:"covered_count"`
	TotalLength   float64 `json:"total_length"`
	CoveredLength float64 `json:"covered_length"`
	Percentage    float64 `json:"percentage"`
}

// Subscriber is the slice of the push channel the store drives.
// *transport.Channel satisfies it.
type Subscriber interface {
	Connect()
	Disconnect()
	Subscribe(v any) error
}

type Options struct {
	Channel  Subscriber
	OnUpdate func(Session)
	OnInfo   func(msg string)
	OnError  func(msg string)
}

// Store accumulates covered segment IDs for the active area session. Segment
// IDs only ever grow within one activation; Activate and Deactivate reset
// everything.
type Store struct {
	opts Options

	mu            sync.Mutex
	active        bool
	areaID        string
	covered       map[string]struct{}
	totalLength   float64
	coveredLength float64
	percentage    float64
}

func NewStore(opts Options) *Store {
	if opts.OnUpdate == nil {
		opts.OnUpdate = func(Session) {}
	}
	if opts.OnInfo == nil {
		opts.OnInfo = func(string) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(string) {}
	}
	return &Store{opts: opts}
}

type subscribeMessage struct {
	Type     string            `json:"type"`
	Location map[string]string `json:"location"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Data    struct {
		CoveredSegments    []string `json:"covered_segments"`
		CoveredLength      float64  `json:"covered_length"`
		TotalLength        float64  `json:"total_length"`
		CoveragePercentage float64  `json:"coverage_percentage"`
	} `json:"data"`
}

// Activate resets all session state and subscribes to the area feed.
func (s *Store) Activate(areaID string) error {
	s.mu.Lock()
	s.active = true
	s.areaID = areaID
	s.covered = make(map[string]struct{})
	s.totalLength = 0
	s.coveredLength = 0
	s.percentage = 0
	s.mu.Unlock()

	if s.opts.Channel != nil {
		if err := s.opts.Channel.Subscribe(subscribeMessage{
			Type:     "subscribe",
			Location: map[string]string{"area_id": areaID},
		}); err != nil {
			return err
		}
		s.opts.Channel.Connect()
	}
	return nil
}

// Deactivate clears all fields and unsubscribes. Idempotent.
func (s *Store) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.areaID = ""
	s.covered = nil
	s.totalLength = 0
	s.coveredLength = 0
	s.percentage = 0
	s.mu.Unlock()

	if s.opts.Channel != nil {
		s.opts.Channel.Disconnect()
	}
}

// Merge adds segment IDs to the covered set and returns how many were new.
// Re-merging known IDs is a no-op for the set.
func (s *Store) Merge(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0
	}
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.covered[id]; !ok {
			s.covered[id] = struct{}{}
			added++
		}
	}
	return added
}

// HandleMessage ingests one raw channel message. Malformed payloads are
// logged and dropped; they never affect session state.
func (s *Store) HandleMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("coverage: dropping malformed message: %v", err)
		return
	}
	switch msg.Type {
	case "coverage_update":
		s.Merge(msg.Data.CoveredSegments)
		s.mu.Lock()
		if !s.active {
			s.mu.Unlock()
			return
		}
		s.totalLength = msg.Data.TotalLength
		s.coveredLength = msg.Data.CoveredLength
		s.percentage = msg.Data.CoveragePercentage
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.opts.OnUpdate(snap)
	case "info":
		s.opts.OnInfo(msg.Message)
	case "error":
		s.opts.OnError(msg.Message)
	default:
		log.Printf("coverage: dropping message of unknown type %q", msg.Type)
	}
}

func (s *Store) Snapshot() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return Session{}, false
	}
	return s.snapshotLocked(), true
}

func (s *Store) snapshotLocked() Session {
	return Session{
		AreaID:        s.areaID,
		CoveredCount:  len(s.covered),
		TotalLength:   s.totalLength,
		CoveredLength: s.coveredLength,
		Percentage:    s.percentage,
	}
}
