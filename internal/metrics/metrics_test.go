package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorHooks(t *testing.T) {
	c := NewCollector()

	c.FrameIngestedInc()
	c.FrameIngestedInc()
	c.IngestErrInc()
	c.BroadcastInc()
	c.PollRequestInc()
	c.StreamClientsAdd(1)
	c.StreamClientsAdd(1)
	c.StreamClientsAdd(-1)
	c.CoverageClientsAdd(1)
	c.NATSSetConnected(true)
	c.IngestObserve(5 * time.Millisecond)

	if got := testutil.ToFloat64(c.FramesIngested); got != 2 {
		t.Fatalf("frames ingested = %v", got)
	}
	if got := testutil.ToFloat64(c.IngestErrs); got != 1 {
		t.Fatalf("ingest errors = %v", got)
	}
	if got := testutil.ToFloat64(c.StreamClients); got != 1 {
		t.Fatalf("stream clients = %v", got)
	}
	if got := testutil.ToFloat64(c.NATSConnected); got != 1 {
		t.Fatalf("nats connected = %v", got)
	}

	c.NATSSetConnected(false)
	if got := testutil.ToFloat64(c.NATSConnected); got != 0 {
		t.Fatalf("nats connected after disconnect = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.FrameIngestedInc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "fleettrack_frames_ingested_total 1") {
		t.Fatalf("expected counter in exposition, got:\n%s", body)
	}
}

func TestPrivateRegistriesDoNotCollide(t *testing.T) {
	// two collectors in one process must not panic on duplicate registration
	_ = NewCollector()
	_ = NewCollector()
}
