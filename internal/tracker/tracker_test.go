package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy() PollPolicy {
	p := DefaultPollPolicy()
	p.Min = 2 * time.Millisecond
	p.Max = 10 * time.Millisecond
	return p
}

func pollServer(t *testing.T, snap *Snapshot) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := PollResponse{Status: "success"}
		if snap != nil {
			resp.HasUpdate = true
			resp.Trip = snap
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestTrackerDuplicateSequenceAppliedOnce(t *testing.T) {
	snap := activeSnapshot("T1", 5,
		pos(32.77, -96.79, 1), pos(32.78, -96.79, 2))
	srv := pollServer(t, &snap)
	defer srv.Close()

	var changes int32
	tr := New(Options{
		PollURL: srv.URL,
		Policy:  fastPolicy(),
		OnChange: func(Change, Snapshot) {
			atomic.AddInt32(&changes, 1)
		},
	})
	tr.Start()
	time.Sleep(60 * time.Millisecond)
	tr.Stop()

	if got := atomic.LoadInt32(&changes); got != 1 {
		t.Fatalf("expected snapshot applied exactly once, got %d changes", got)
	}
	cur, ok := tr.Current()
	if !ok || cur.Sequence != 5 {
		t.Fatalf("unexpected current state: %+v", cur)
	}
}

func TestTrackerPollFailureCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	degraded := make(chan struct{}, 4)
	failed := make(chan struct{}, 1)

	policy := fastPolicy()
	policy.DegradedAfter = 2

	tr := New(Options{
		PollURL:         srv.URL,
		Policy:          policy,
		MaxPollFailures: 4,
		OnDegraded:      func() { degraded <- struct{}{} },
		OnFailed:        func() { failed <- struct{}{} },
	})
	tr.Start()
	defer tr.Stop()

	select {
	case <-degraded:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for degraded signal")
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for failure ceiling")
	}
}

func TestHandleFrameDropsMalformed(t *testing.T) {
	tr := New(Options{PollURL: "http://unused", Policy: fastPolicy(), OnChange: func(Change, Snapshot) {
		t.Fatalf("no change expected for malformed frames")
	}})

	tr.HandleFrame([]byte(`not json`))
	tr.HandleFrame([]byte(`{"trip":{"sequence":1,"status":"active"}}`))

	if _, ok := tr.Current(); ok {
		t.Fatalf("expected no state from malformed frames")
	}
}

func TestTrackerPushWinsOverStalePoll(t *testing.T) {
	stale := activeSnapshot("T1", 5, pos(32.77, -96.79, 1))
	srv := pollServer(t, &stale)
	defer srv.Close()

	tr := New(Options{PollURL: srv.URL, Policy: fastPolicy()})

	fresh := Frame{Trip: activeSnapshot("T1", 6,
		pos(32.77, -96.79, 1), pos(32.78, -96.79, 2))}
	payload, _ := json.Marshal(fresh)
	tr.HandleFrame(payload)

	tr.Start()
	time.Sleep(40 * time.Millisecond)
	tr.Stop()

	cur, ok := tr.Current()
	if !ok || cur.Sequence != 6 {
		t.Fatalf("expected push sequence 6 retained, got %+v", cur)
	}
}

func TestPollOnceErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PollResponse{Status: "error"})
	}))
	defer srv.Close()

	tr := New(Options{PollURL: srv.URL, Policy: fastPolicy()})
	if _, err := tr.pollOnce(); err == nil {
		t.Fatalf("expected error for error status")
	}

	tr = New(Options{PollURL: "http://127.0.0.1:1", Policy: fastPolicy()})
	if _, err := tr.pollOnce(); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestPollOnceSendsLastSequence(t *testing.T) {
	var gotSeq string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSeq = r.URL.Query().Get("last_sequence")
		_ = json.NewEncoder(w).Encode(PollResponse{Status: "success"})
	}))
	defer srv.Close()

	tr := New(Options{PollURL: srv.URL + "/poll?vehicle=v1", Policy: fastPolicy()})
	tr.reducer.Apply(activeSnapshot("T1", 7, pos(32.77, -96.79, 1)))

	if _, err := tr.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if gotSeq != "7" {
		t.Fatalf("expected last_sequence=7, got %q", gotSeq)
	}
}
