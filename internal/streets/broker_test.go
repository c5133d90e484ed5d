package streets

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backend-fleettrack/internal/tracker"
)

type fakeLoader struct {
	segments map[string]Segment
	total    float64
	err      error
	calls    int
}

func (f *fakeLoader) LoadArea(_ context.Context, areaID string) (map[string]Segment, float64, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.segments, f.total, nil
}

func testArea(t *testing.T) *fakeLoader {
	t.Helper()
	a := tracker.Position{Lat: 32.77000, Lon: -96.79000}
	b := tracker.Position{Lat: 32.77100, Lon: -96.79000}
	key, ok := segmentKeyFor(a, b, 5)
	if !ok {
		t.Fatalf("segment key failed")
	}
	return &fakeLoader{
		segments: map[string]Segment{
			key: {ID: "seg-1", AreaID: "area", Key: key, LengthM: 100},
		},
		total: 400,
	}
}

func recvUpdate(t *testing.T, client *BrokerClient) updateData {
	t.Helper()
	select {
	case raw := <-client.Send:
		var msg outMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad message: %v", err)
		}
		if msg.Type != "coverage_update" || msg.Data == nil {
			t.Fatalf("expected coverage_update, got %+v", msg)
		}
		return *msg.Data
	case <-time.After(time.Second):
		t.Fatalf("no message")
	}
	return updateData{}
}

func TestSubscribePushesInitialState(t *testing.T) {
	broker := NewBroker(testArea(t), 5, nil)
	client, err := broker.Subscribe(context.Background(), "area")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer broker.Unsubscribe(client)

	data := recvUpdate(t, client)
	if len(data.CoveredSegments) != 0 || data.TotalLength != 400 || data.CoveragePercentage != 0 {
		t.Fatalf("unexpected initial update: %+v", data)
	}
}

func TestObserveFixMarksSegmentOnce(t *testing.T) {
	broker := NewBroker(testArea(t), 5, nil)
	client, err := broker.Subscribe(context.Background(), "area")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer broker.Unsubscribe(client)
	recvUpdate(t, client)

	a := tracker.Position{Lat: 32.77000, Lon: -96.79000}
	b := tracker.Position{Lat: 32.77100, Lon: -96.79000}
	broker.ObserveFix("veh-1", a, b)

	data := recvUpdate(t, client)
	if len(data.CoveredSegments) != 1 || data.CoveredSegments[0] != "seg-1" {
		t.Fatalf("unexpected covered set: %+v", data)
	}
	if data.CoveredLength != 100 || data.CoveragePercentage != 25 {
		t.Fatalf("unexpected aggregates: %+v", data)
	}

	// traversing the same stretch again, in the opposite direction, is a no-op
	broker.ObserveFix("veh-2", b, a)
	select {
	case raw := <-client.Send:
		t.Fatalf("unexpected push for already-covered segment: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserveFixIgnoresUncataloguedLeg(t *testing.T) {
	broker := NewBroker(testArea(t), 5, nil)
	client, err := broker.Subscribe(context.Background(), "area")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer broker.Unsubscribe(client)
	recvUpdate(t, client)

	broker.ObserveFix("veh-1",
		tracker.Position{Lat: 40.0, Lon: -74.0},
		tracker.Position{Lat: 40.001, Lon: -74.0},
	)
	select {
	case raw := <-client.Send:
		t.Fatalf("unexpected push: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeEndsSession(t *testing.T) {
	loader := testArea(t)
	broker := NewBroker(loader, 5, nil)

	client, err := broker.Subscribe(context.Background(), "area")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvUpdate(t, client)

	a := tracker.Position{Lat: 32.77000, Lon: -96.79000}
	b := tracker.Position{Lat: 32.77100, Lon: -96.79000}
	broker.ObserveFix("veh-1", a, b)
	recvUpdate(t, client)

	broker.Unsubscribe(client)
	broker.Unsubscribe(client) // idempotent

	// a fresh subscriber starts a new session with an empty covered set
	client2, err := broker.Subscribe(context.Background(), "area")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer broker.Unsubscribe(client2)
	data := recvUpdate(t, client2)
	if len(data.CoveredSegments) != 0 {
		t.Fatalf("expected reset covered set: %+v", data)
	}
	if loader.calls != 2 {
		t.Fatalf("expected catalog reload after session end, got %d calls", loader.calls)
	}
}

func TestSubscribeLoaderError(t *testing.T) {
	broker := NewBroker(&fakeLoader{err: errors.New("boom")}, 5, nil)
	if _, err := broker.Subscribe(context.Background(), "area"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNotify(t *testing.T) {
	client := &BrokerClient{AreaID: "area", Send: make(chan []byte, 1)}
	Notify(client, "info", "subscribed")

	var msg outMessage
	if err := json.Unmarshal(<-client.Send, &msg); err != nil {
		t.Fatalf("bad message: %v", err)
	}
	if msg.Type != "info" || msg.Message != "subscribed" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// full buffer drops instead of blocking
	Notify(client, "info", "again")
	Notify(client, "info", "dropped")
	if got := len(client.Send); got != 1 {
		t.Fatalf("expected 1 buffered message, got %d", got)
	}
}
