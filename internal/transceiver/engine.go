// internal/transceiver/engine.go
package transceiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/ColonelBlimp/cwkeyer/internal/recovery"
	"golang.org/x/sync/errgroup"
)

// ErrHostModeOnly indicates text was offered while decoding the key
var ErrHostModeOnly = errors.New("text input is only accepted in host mode")

// Sink receives every character taken from the queue, in order.
// Consume is called from the engine goroutines and must not block for long.
type Sink interface {
	Consume(c byte)
}

// Observer is notified of classifier activity and keyed characters.
type Observer interface {
	Classified(ev cw.Event)
	Sent(c byte)
}

type nopObserver struct{}

func (nopObserver) Classified(cw.Event) {}
func (nopObserver) Sent(byte)           {}

// releasedKey is used when no key is connected
type releasedKey struct{}

func (releasedKey) Key() cw.KeyState { return cw.KeyState{} }

// Options configures a new Engine.
type Options struct {
	Keyer    cw.KeyerConfig
	Mode     Mode
	Key      cw.KeyInput // nil reads as a released key
	PTT      cw.Line     // nil when not connected
	Tone     cw.Line     // nil when muted
	Sinks    []Sink
	Observer Observer
	Sleep    cw.SleepFunc // nil uses real time
	Debug    bool
}

type update struct {
	cfg   cw.KeyerConfig
	mode  Mode
	reset bool
}

// Engine couples the codec to the key input, the keying lines and the sinks.
//
// In keyer mode the key is sampled every tick, decoded characters are queued
// and fanned out to the sinks, and the keying lines follow the key. In host
// mode text pushed with PushText is queued, fanned out and keyed.
type Engine struct {
	mu   sync.Mutex
	cfg  cw.KeyerConfig
	mode Mode

	queue      *cw.CharQueue
	classifier *cw.Classifier
	pending    atomic.Pointer[update] // applied by the tick loop
	tickMode   Mode                   // owned by the tick loop
	encoder    *cw.Encoder
	output     *cw.Output
	key        cw.KeyInput

	// pushMu makes the producer side of the queue exclusive: the classifier
	// in keyer mode, PushChar callers in host mode. It also orders mode
	// switches against both.
	pushMu sync.Mutex
	keyMu  sync.Mutex // one keying sequence at a time
	sinkMu sync.Mutex
	sinks  []Sink

	observer    Observer
	debug       bool
	monitorDown bool
}

// New creates an engine. The keying lines are released until Run starts.
func New(opts Options) (*Engine, error) {
	if err := opts.Keyer.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode > Host {
		return nil, ErrInvalidMode
	}

	e := &Engine{
		cfg:      opts.Keyer,
		mode:     opts.Mode,
		tickMode: opts.Mode,
		queue:    cw.NewCharQueue(),
		output:   cw.NewOutput(opts.Keyer.Tone, opts.PTT, opts.Tone),
		key:      opts.Key,
		sinks:    opts.Sinks,
		observer: opts.Observer,
		debug:    opts.Debug,
	}
	if e.key == nil {
		e.key = releasedKey{}
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}

	var err error
	if e.classifier, err = cw.NewClassifier(opts.Keyer, e.queue); err != nil {
		return nil, err
	}
	if e.encoder, err = cw.NewEncoder(opts.Keyer, e.output); err != nil {
		return nil, err
	}
	if opts.Sleep != nil {
		e.encoder.SetSleeper(opts.Sleep)
	}
	return e, nil
}

// Mode returns the active input mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Config returns the active codec configuration.
func (e *Engine) Config() cw.KeyerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Queue exposes the character queue.
func (e *Engine) Queue() *cw.CharQueue {
	return e.queue
}

// Reconfigure switches speed, keyer type, tone mode and input mode.
// Changing the input mode discards the character being decoded.
func (e *Engine) Reconfigure(cfg cw.KeyerConfig, mode Mode) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if mode > Host {
		return ErrInvalidMode
	}

	// The tick loop sees the new mode only together with its reset
	e.pushMu.Lock()
	e.mu.Lock()
	reset := mode != e.mode
	e.cfg = cfg
	e.mode = mode
	e.mu.Unlock()
	e.pending.Store(&update{cfg: cfg, mode: mode, reset: reset})
	e.pushMu.Unlock()

	e.encoder.SetConfig(cfg)
	e.output.SetMode(cfg.Tone)

	if e.debug {
		log.Printf("KEYER: %s mode, %s key, %d WPM, %s output", mode, cfg.Mode, cfg.WPM(), cfg.Tone)
	}
	return nil
}

// PushChar queues one host character. Characters without a Morse pattern are
// ignored.
func (e *Engine) PushChar(c byte) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	if e.Mode() != Host {
		return ErrHostModeOnly
	}
	if !cw.Supported(c) {
		return nil
	}
	return e.queue.Push(c)
}

// PushText queues host text and returns the number of characters accepted.
// It stops at the first rejected push.
func (e *Engine) PushText(text string) (int, error) {
	n := 0
	for i := 0; i < len(text); i++ {
		if !cw.Supported(text[i]) {
			continue
		}
		if err := e.PushChar(text[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Send keys text directly, bypassing the queue, and shows it on the sinks.
func (e *Engine) Send(ctx context.Context, text string) error {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !cw.Supported(c) {
			continue
		}
		e.emit(c)
		if err := e.send(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Wait idles for the given number of units at the current speed.
func (e *Engine) Wait(ctx context.Context, units int) error {
	return e.encoder.Wait(ctx, units)
}

// SetPTTOverride latches PTT on or releases the latch.
func (e *Engine) SetPTTOverride(on bool) error {
	return e.output.SetPTTOverride(on)
}

// TogglePTTOverride flips the PTT latch and returns the new state.
func (e *Engine) TogglePTTOverride() (bool, error) {
	return e.output.TogglePTTOverride()
}

// Release unkeys every line and clears the PTT latch.
func (e *Engine) Release() error {
	return errors.Join(e.output.SetPTTOverride(false), e.output.Release())
}

// Run drives the engine until ctx is done. The keying lines are released on
// return.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.tickLoop(ctx) })
	g.Go(func() error { return e.monitorLoop(ctx) })
	g.Go(func() error { return e.consumeLoop(ctx) })

	err := g.Wait()
	if rerr := e.Release(); rerr != nil && err == nil {
		err = fmt.Errorf("release output: %w", rerr)
	}
	return err
}

func (e *Engine) releaseOnPanic() {
	_ = e.Release()
}

func (e *Engine) tickLoop(ctx context.Context) error {
	defer recovery.HandlePanicFunc(e.releaseOnPanic)

	ticker := time.NewTicker(cw.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick applies pending configuration and, in keyer mode, classifies one key
// sample.
func (e *Engine) tick() {
	// Sample outside the lock; tickMode is only written by this goroutine
	var state cw.KeyState
	if e.tickMode == Keyer || e.pending.Load() != nil {
		state = e.key.Key()
	}

	e.pushMu.Lock()
	if u := e.pending.Swap(nil); u != nil {
		e.classifier.SetConfig(u.cfg)
		if u.reset {
			e.classifier.Reset()
		}
		e.tickMode = u.mode
	}
	if e.tickMode != Keyer {
		e.pushMu.Unlock()
		return
	}
	ev := e.classifier.Tick(state)
	e.pushMu.Unlock()

	if ev == 0 {
		return
	}
	e.observer.Classified(ev)
	if e.debug {
		if ev.Has(cw.EventDropped) {
			log.Println("KEYER: queue full, character dropped")
		}
		if ev.Has(cw.EventOverflow) {
			log.Println("KEYER: symbol sequence full, symbol dropped")
		}
	}
}

func (e *Engine) monitorLoop(ctx context.Context) error {
	defer recovery.HandlePanicFunc(e.releaseOnPanic)

	ticker := time.NewTicker(cw.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.monitor(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("key monitor: %w", err)
			}
		}
	}
}

// monitor makes the keying lines follow the key in keyer mode. A straight key
// is mirrored; a paddle produces one timed element per sample.
func (e *Engine) monitor(ctx context.Context) error {
	if e.Mode() != Keyer {
		if e.monitorDown {
			e.monitorDown = false
			return e.output.Release()
		}
		return nil
	}

	state := e.key.Key()
	if e.Config().Mode == cw.Paddle {
		if !state.Down() {
			return nil
		}
		s := cw.Dot
		if state.Dah {
			s = cw.Dash
		}
		e.keyMu.Lock()
		defer e.keyMu.Unlock()
		if err := e.encoder.Pulse(ctx, s); err != nil {
			return err
		}
		return e.encoder.Wait(ctx, cw.DotUnits)
	}

	if state.Down() == e.monitorDown {
		return nil
	}
	e.monitorDown = state.Down()
	if e.monitorDown {
		return e.output.Assert()
	}
	return e.output.Release()
}

func (e *Engine) consumeLoop(ctx context.Context) error {
	defer recovery.HandlePanicFunc(e.releaseOnPanic)

	ticker := time.NewTicker(cw.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.drain(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// drain empties the queue: every character goes to the sinks and, in host
// mode, is keyed.
func (e *Engine) drain(ctx context.Context) error {
	for {
		c, err := e.queue.Pop()
		if err != nil {
			return nil
		}
		e.emit(c)
		if e.Mode() == Host {
			if err := e.send(ctx, c); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) emit(c byte) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	for _, s := range e.sinks {
		s.Consume(c)
	}
}

func (e *Engine) send(ctx context.Context, c byte) error {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if err := e.encoder.Encode(ctx, c); err != nil {
		return err
	}
	e.observer.Sent(c)
	return nil
}
