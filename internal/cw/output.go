// internal/cw/output.go
package cw

import (
	"errors"
	"sync"
)

// Line is a single keying line such as the PTT output or the tone generator.
type Line interface {
	Set(on bool) error
}

// Keying is what the encoder drives.
type Keying interface {
	Assert() error
	Release() error
}

type nopLine struct{}

func (nopLine) Set(bool) error { return nil }

// Output drives the PTT and tone lines according to the tone mode.
//
// The PTT override latch holds PTT asserted: Release leaves it untouched while
// the latch is set.
type Output struct {
	mu       sync.Mutex
	ptt      Line
	tone     Line
	mode     ToneMode
	override bool
	keyed    bool
}

// NewOutput creates an output. Nil lines are treated as not connected.
func NewOutput(mode ToneMode, ptt, tone Line) *Output {
	if ptt == nil {
		ptt = nopLine{}
	}
	if tone == nil {
		tone = nopLine{}
	}
	return &Output{ptt: ptt, tone: tone, mode: mode}
}

// SetMode changes the tone mode. Takes effect on the next Assert.
func (o *Output) SetMode(mode ToneMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = mode
}

// Assert keys the lines selected by the tone mode.
func (o *Output) Assert() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	if o.mode.UsesPTT() {
		errs = append(errs, o.ptt.Set(true))
	}
	if o.mode.UsesTone() {
		errs = append(errs, o.tone.Set(true))
	}
	o.keyed = true
	return errors.Join(errs...)
}

// Release unkeys the tone and, unless the override latch is set, the PTT line.
func (o *Output) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	if !o.override {
		errs = append(errs, o.ptt.Set(false))
	}
	errs = append(errs, o.tone.Set(false))
	o.keyed = false
	return errors.Join(errs...)
}

// SetPTTOverride sets the override latch and drives PTT to match it.
func (o *Output) SetPTTOverride(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.override = on
	return o.ptt.Set(on)
}

// TogglePTTOverride flips the override latch and returns the new state.
func (o *Output) TogglePTTOverride() (bool, error) {
	o.mu.Lock()
	on := !o.override
	o.mu.Unlock()
	return on, o.SetPTTOverride(on)
}

// PTTOverride reports the latch state.
func (o *Output) PTTOverride() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.override
}

// Keyed reports whether the last command was Assert.
func (o *Output) Keyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.keyed
}
