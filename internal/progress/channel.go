package progress

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
)

// Frame is one progress observation, identical for push and poll paths.
type Frame struct {
	Status   string  `json:"status"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

func (f Frame) Terminal() bool {
	switch f.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return f.Progress >= 100
}

// Outcome is the single terminal result every channel eventually reaches.
type Outcome struct {
	Status string
	Frame  Frame
}

// PollFunc fetches the task's current progress; used as the fallback when the
// push stream errors or ends without a terminal status.
type PollFunc func(ctx context.Context) (Frame, error)

type Options struct {
	Poll         PollFunc
	PollInterval time.Duration

	// StallThreshold: consecutive observations of the same stage before one
	// non-fatal stalled signal fires. The counter then resets, so a stage
	// stuck forever re-signals once per threshold-sized window.
	StallThreshold int

	// MaxObservations and MaxDuration are the global ceilings that force a
	// terminal state out of a task that never reports one.
	MaxObservations int
	MaxDuration     time.Duration
	MaxPollFailures int

	OnProgress func(Frame)
	OnStalled  func(stage string)
	OnTerminal func(Outcome)
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = 12
	}
	if o.MaxObservations <= 0 {
		o.MaxObservations = 1000
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 10 * time.Minute
	}
	if o.MaxPollFailures <= 0 {
		o.MaxPollFailures = 5
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Frame) {}
	}
	if o.OnStalled == nil {
		o.OnStalled = func(string) {}
	}
	if o.OnTerminal == nil {
		o.OnTerminal = func(Outcome) {}
	}
}

// Channel tracks one long-running task to a guaranteed terminal state:
// push-first, transparent poll fallback, stall detection, hard ceilings.
type Channel struct {
	opts Options

	mu           sync.Mutex
	done         bool
	polling      bool
	lastStage    string
	stallCount   int
	observations int
	pollFailures int
	deadline     *time.Timer
	stop         chan struct{}
	wg           sync.WaitGroup
}

func NewChannel(opts Options) *Channel {
	opts.normalize()
	c := &Channel{opts: opts, stop: make(chan struct{})}
	c.deadline = time.AfterFunc(opts.MaxDuration, func() {
		c.finish(Outcome{Status: StatusTimeout})
	})
	return c
}

// HandleFrame ingests one raw push message. A {"type":"done"} control frame
// switches to polling; anything unparseable is dropped and logged.
func (c *Channel) HandleFrame(data []byte) {
	var env struct {
		Type string `json:"type"`
		Frame
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("progress: dropping malformed frame: %v", err)
		return
	}
	if env.Type == "done" {
		c.HandleDone()
		return
	}
	c.Observe(env.Frame)
}

// HandleDone reacts to the push stream ending without a terminal status.
func (c *Channel) HandleDone() {
	c.startPolling()
}

// HandleTransportError reacts to the push channel failing.
func (c *Channel) HandleTransportError() {
	c.startPolling()
}

// Observe feeds one progress frame through stall detection, ceilings, and
// terminal-state handling.
func (c *Channel) Observe(f Frame) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.observations++

	stalled := false
	if f.Stage != "" && f.Stage == c.lastStage {
		c.stallCount++
		if c.stallCount >= c.opts.StallThreshold {
			stalled = true
			c.stallCount = 0
		}
	} else {
		c.lastStage = f.Stage
		c.stallCount = 0
	}
	ceilingHit := c.observations >= c.opts.MaxObservations
	c.mu.Unlock()

	if f.Terminal() {
		status := f.Status
		if !isTerminalStatus(status) {
			status = StatusCompleted
		}
		c.finish(Outcome{Status: status, Frame: f})
		return
	}

	c.opts.OnProgress(f)
	if stalled {
		c.opts.OnStalled(f.Stage)
	}
	if ceilingHit {
		c.finish(Outcome{Status: StatusTimeout, Frame: f})
	}
}

// Cancel forces the terminal cancelled state and stops all activity.
func (c *Channel) Cancel() {
	c.finish(Outcome{Status: StatusCancelled})
}

func (c *Channel) startPolling() {
	c.mu.Lock()
	if c.done || c.polling || c.opts.Poll == nil {
		c.mu.Unlock()
		return
	}
	c.polling = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop()
}

func (c *Channel) pollLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.PollInterval)
		f, err := c.opts.Poll(ctx)
		cancel()

		if err != nil {
			c.mu.Lock()
			c.pollFailures++
			failures := c.pollFailures
			c.mu.Unlock()
			log.Printf("progress: poll failed (%d consecutive): %v", failures, err)
			if failures >= c.opts.MaxPollFailures {
				c.finish(Outcome{Status: StatusTimeout})
				return
			}
			continue
		}
		c.mu.Lock()
		c.pollFailures = 0
		c.mu.Unlock()
		c.Observe(f)

		c.mu.Lock()
		done := c.done
		c.mu.Unlock()
		if done {
			return
		}
	}
}

func (c *Channel) finish(o Outcome) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.deadline.Stop()
	close(c.stop)
	c.mu.Unlock()

	c.opts.OnTerminal(o)
}

func isTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
