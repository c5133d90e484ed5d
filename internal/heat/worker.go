package heat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	envCalculate = "calculate"
	envResult    = "result"
	envError     = "error"
)

// Envelope is the worker wire format. Responses echo the request ID so a
// caller can match them; replies for IDs no longer pending are dropped.
type Envelope struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Features  []Feature `json:"features,omitempty"`
	Precision int       `json:"precision,omitempty"`
	Stats     *Stats    `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
}

var ErrTimeout = errors.New("heat: worker request timed out")

// Worker runs density aggregation off the caller's goroutine. It owns no
// session state; each request is computed purely from its own payload.
type Worker struct {
	in      chan Envelope
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Envelope

	done     chan struct{}
	stopOnce sync.Once
}

func NewWorker(timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &Worker{
		in:      make(chan Envelope),
		timeout: timeout,
		pending: make(map[string]chan Envelope),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Calculate submits one batch and waits for the correlated reply, returning
// the annotated copy of the input. The request owns a deep copy of features,
// so an abandoned request can never touch caller memory. Timing out abandons
// the request; a late reply is ignored, not delivered.
func (w *Worker) Calculate(ctx context.Context, features []Feature, precision int) ([]Feature, *Stats, error) {
	req := Envelope{
		Type:      envCalculate,
		ID:        uuid.NewString(),
		Features:  cloneFeatures(features),
		Precision: precision,
	}
	reply := make(chan Envelope, 1)

	w.mu.Lock()
	w.pending[req.ID] = reply
	w.mu.Unlock()
	defer w.abandon(req.ID)

	select {
	case w.in <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-w.done:
		return nil, nil, errors.New("heat: worker closed")
	}

	select {
	case resp := <-reply:
		if resp.Type == envError {
			return nil, nil, errors.New(resp.Error)
		}
		return resp.Features, resp.Stats, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(w.timeout):
		return nil, nil, ErrTimeout
	case <-w.done:
		return nil, nil, errors.New("heat: worker closed")
	}
}

func cloneFeatures(features []Feature) []Feature {
	if features == nil {
		return nil
	}
	out := make([]Feature, len(features))
	for i, f := range features {
		out[i] = f.Clone()
	}
	return out
}

func (w *Worker) loop() {
	for {
		select {
		case <-w.done:
			return
		case req := <-w.in:
			w.deliver(w.handle(req))
		}
	}
}

func (w *Worker) handle(req Envelope) Envelope {
	if req.Precision < 0 || req.Precision > 12 {
		return Envelope{
			Type:  envError,
			ID:    req.ID,
			Error: fmt.Sprintf("precision %d out of range", req.Precision),
		}
	}
	stats := Aggregate(req.Features, req.Precision)
	return Envelope{
		Type:     envResult,
		ID:       req.ID,
		Features: req.Features,
		Stats:    stats,
	}
}

func (w *Worker) deliver(resp Envelope) {
	w.mu.Lock()
	reply, ok := w.pending[resp.ID]
	if ok {
		delete(w.pending, resp.ID)
	}
	w.mu.Unlock()

	if !ok {
		log.Printf("heat: dropping reply for stale request %s", resp.ID)
		return
	}
	reply <- resp
}

func (w *Worker) abandon(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}
