// internal/cw/encoder.go
package cw

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrKeyingRequired indicates the encoder needs a keying output
var ErrKeyingRequired = errors.New("keying output is required")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Encoder keys characters as timed pulses.
//
// Encode is meant for a single goroutine; SetConfig may be called from another
// one and applies from the next element.
type Encoder struct {
	out   Keying
	unit  atomic.Int64 // time.Duration of one unit
	sleep SleepFunc
}

// NewEncoder creates an encoder driving out at the speed of cfg.
func NewEncoder(cfg KeyerConfig, out Keying) (*Encoder, error) {
	if out == nil {
		return nil, ErrKeyingRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{out: out, sleep: sleepContext}
	e.SetConfig(cfg)
	return e, nil
}

// SetConfig changes the keying speed.
func (e *Encoder) SetConfig(cfg KeyerConfig) {
	e.unit.Store(int64(cfg.Unit()))
}

// SetSleeper replaces the wait function. Used by tests to run on virtual time.
func (e *Encoder) SetSleeper(fn SleepFunc) {
	if fn == nil {
		fn = sleepContext
	}
	e.sleep = fn
}

// Unit returns the current unit duration.
func (e *Encoder) Unit() time.Duration {
	return time.Duration(e.unit.Load())
}

// Encode keys a single character. Every element is followed by a 3 unit gap,
// so consecutive calls are spaced correctly. Space is a 4 unit wait without
// keying. Characters without a pattern are skipped.
func (e *Encoder) Encode(ctx context.Context, c byte) error {
	if c == Space {
		return e.Wait(ctx, SpaceUnits)
	}
	for _, s := range Elements(c) {
		if err := e.Pulse(ctx, s); err != nil {
			return err
		}
		if err := e.Wait(ctx, ElementGapUnits); err != nil {
			return err
		}
	}
	return nil
}

// EncodeString keys every byte of text in order.
func (e *Encoder) EncodeString(ctx context.Context, text string) error {
	for i := 0; i < len(text); i++ {
		if err := e.Encode(ctx, text[i]); err != nil {
			return err
		}
	}
	return nil
}

// Pulse keys one element without the trailing gap.
// The output is always released, also when ctx is cancelled.
func (e *Encoder) Pulse(ctx context.Context, s Symbol) error {
	units := DotUnits
	if s == Dash {
		units = DashUnits
	}

	if err := e.out.Assert(); err != nil {
		_ = e.out.Release()
		return err
	}
	waitErr := e.Wait(ctx, units)
	if err := e.out.Release(); err != nil {
		return err
	}
	return waitErr
}

// Wait idles for the given number of units.
func (e *Encoder) Wait(ctx context.Context, units int) error {
	return e.sleep(ctx, time.Duration(units)*e.Unit())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
