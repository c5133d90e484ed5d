package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"backend-fleettrack/internal/transport"
)

// Options wires a Tracker. Callback fields default to no-ops.
type Options struct {
	// PollURL is the trip delta endpoint; last_sequence is appended as a
	// query parameter.
	PollURL string
	Client  *http.Client
	Policy  PollPolicy

	// ChannelOptions configures the push channel. Empty URL disables push
	// and the tracker runs on polling alone.
	ChannelOptions transport.Options

	// MaxPollFailures is the hard ceiling of consecutive poll failures
	// before the tracker tears itself down and reports OnFailed.
	MaxPollFailures int

	OnChange   func(change Change, current Snapshot)
	OnDegraded func()
	OnFailed   func()
}

// Tracker keeps one vehicle's live trip state in sync: push frames and poll
// responses both funnel into the same reducer, so merge order is decided by
// sequence numbers, not delivery timing.
type Tracker struct {
	opts    Options
	reducer *Reducer
	channel *transport.Channel
	client  *http.Client

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(opts Options) *Tracker {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Policy.Min <= 0 {
		opts.Policy = DefaultPollPolicy()
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = 10
	}
	t := &Tracker{
		opts:    opts,
		reducer: NewReducer(),
		client:  opts.Client,
		stop:    make(chan struct{}),
	}
	if opts.ChannelOptions.URL != "" {
		t.channel = transport.NewChannel(opts.ChannelOptions, transport.Handlers{
			OnMessage: t.HandleFrame,
			OnGiveUp:  t.degraded,
		})
	}
	return t
}

func (t *Tracker) Start() {
	if t.channel != nil {
		t.channel.Connect()
	}
	t.wg.Add(1)
	go t.pollLoop()
}

// Stop synchronously cancels the poll timer and closes the push channel.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	if t.channel != nil {
		t.channel.Disconnect()
	}
	t.wg.Wait()
}

func (t *Tracker) Current() (Snapshot, bool) { return t.reducer.Current() }

// HandleFrame ingests one raw push message. Malformed payloads are dropped
// without touching transport or trip state.
func (t *Tracker) HandleFrame(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("tracker: dropping malformed frame: %v", err)
		return
	}
	if f.Trip.TransactionID == "" {
		log.Printf("tracker: dropping frame without transaction id")
		return
	}
	t.apply(f.Trip)
}

func (t *Tracker) apply(s Snapshot) Change {
	change := t.reducer.Apply(s)
	if change != ChangeNone && t.opts.OnChange != nil {
		cur, _ := t.reducer.Current()
		t.opts.OnChange(change, cur)
	}
	return change
}

func (t *Tracker) degraded() {
	if t.opts.OnDegraded != nil {
		t.opts.OnDegraded()
	}
}

func (t *Tracker) pollLoop() {
	defer t.wg.Done()

	delay := t.opts.Policy.Min
	errs, idle := 0, 0
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}

		resp, err := t.pollOnce()
		var state PollState
		if err != nil {
			errs++
			state.Errored = true
			state.ConsecutiveErrors = errs
			log.Printf("tracker: poll failed (%d consecutive): %v", errs, err)
			if errs >= t.opts.MaxPollFailures {
				log.Printf("tracker: poll failure ceiling reached, tearing down")
				if t.opts.OnFailed != nil {
					t.opts.OnFailed()
				}
				return
			}
		} else {
			errs = 0
			if resp.HasUpdate && resp.Trip != nil {
				state.HasUpdate = t.apply(*resp.Trip) != ChangeNone
			}
			if cur, ok := t.reducer.Current(); ok {
				state.SpeedKmh = cur.Metrics.CurrentSpeedKmh
			}
			if !state.HasUpdate && state.SpeedKmh < t.opts.Policy.MovingSpeedKmh {
				idle++
			} else {
				idle = 0
			}
			state.IdleCycles = idle
		}

		var sig Signal
		delay, sig = t.opts.Policy.Next(delay, state)
		if sig == SignalDegraded {
			t.degraded()
		}
		timer.Reset(delay)
	}
}

func (t *Tracker) pollOnce() (PollResponse, error) {
	sep := "?"
	if strings.Contains(t.opts.PollURL, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s%slast_sequence=%d", t.opts.PollURL, sep, t.reducer.LastSequence())

	resp, err := t.client.Get(url)
	if err != nil {
		return PollResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PollResponse{}, fmt.Errorf("poll status %d", resp.StatusCode)
	}
	var body PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PollResponse{}, err
	}
	if body.Status != "success" {
		return PollResponse{}, errors.New("poll reported error status")
	}
	return body, nil
}
