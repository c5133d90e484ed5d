package tracker

import "time"

type Signal int

const (
	SignalNone Signal = iota
	// SignalDegraded: consecutive poll failures crossed the threshold. Not a
	// hard failure; the loop keeps polling at a grown interval.
	SignalDegraded
)

// PollPolicy computes the next poll delay from domain state. Pure: the caller
// owns timers and side effects.
type PollPolicy struct {
	Min time.Duration
	Max time.Duration

	FastSpeedKmh   float64
	MovingSpeedKmh float64

	DecayFactor   float64
	GrowthFactor  float64
	IdleCycles    int
	DegradedAfter int
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Min:            time.Second,
		Max:            30 * time.Second,
		FastSpeedKmh:   50,
		MovingSpeedKmh: 5,
		DecayFactor:    0.5,
		GrowthFactor:   1.5,
		IdleCycles:     3,
		DegradedAfter:  3,
	}
}

type PollState struct {
	SpeedKmh          float64
	HasUpdate         bool
	Errored           bool
	ConsecutiveErrors int
	IdleCycles        int
}

func (p PollPolicy) Next(current time.Duration, s PollState) (time.Duration, Signal) {
	if current <= 0 {
		current = p.Min
	}

	if s.Errored {
		sig := SignalNone
		if s.ConsecutiveErrors == p.DegradedAfter {
			sig = SignalDegraded
		}
		return p.clamp(p.grow(current)), sig
	}

	moving := s.SpeedKmh >= p.MovingSpeedKmh
	fast := s.SpeedKmh >= p.FastSpeedKmh

	switch {
	case fast && s.HasUpdate:
		// fast movers need near-real-time updates, no gradual decay
		return p.Min, SignalNone
	case moving && s.HasUpdate:
		return p.clamp(time.Duration(float64(current) * p.DecayFactor)), SignalNone
	case moving:
		// moving but nothing new: hold, but never drift into the slow band
		return clampTo(current, p.Min, p.upperMid()), SignalNone
	case s.IdleCycles >= p.IdleCycles:
		return p.clamp(p.grow(current)), SignalNone
	default:
		return p.clamp(current), SignalNone
	}
}

func (p PollPolicy) grow(d time.Duration) time.Duration {
	factor := p.GrowthFactor
	if factor <= 1 {
		factor = 1.5
	}
	return time.Duration(float64(d) * factor)
}

func (p PollPolicy) upperMid() time.Duration {
	return p.Min + 3*(p.Max-p.Min)/4
}

func (p PollPolicy) clamp(d time.Duration) time.Duration {
	return clampTo(d, p.Min, p.Max)
}

func clampTo(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
