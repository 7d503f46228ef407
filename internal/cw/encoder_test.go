package cw

import (
	"context"
	"errors"
	"testing"
	"time"
)

// virtualClock advances instead of sleeping
type virtualClock struct {
	now time.Duration
}

func (v *virtualClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.now += d
	return nil
}

type edge struct {
	at time.Duration
	on bool
}

// recordingLine records level changes against the virtual clock
type recordingLine struct {
	clock *virtualClock
	on    bool
	edges []edge
	err   error
}

func (l *recordingLine) Set(on bool) error {
	if l.err != nil {
		return l.err
	}
	if on != l.on {
		l.edges = append(l.edges, edge{at: l.clock.now, on: on})
	}
	l.on = on
	return nil
}

func newTestEncoder(t *testing.T, cfg KeyerConfig) (*Encoder, *recordingLine, *virtualClock) {
	t.Helper()
	clock := &virtualClock{}
	line := &recordingLine{clock: clock}
	enc, err := NewEncoder(cfg, NewOutput(TonePTT, line, nil))
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	enc.SetSleeper(clock.sleep)
	return enc, line, clock
}

// sampleTicks converts a recorded timeline into one key sample per tick
func sampleTicks(edges []edge, end time.Duration) []KeyState {
	var states []KeyState
	on := false
	next := 0
	for at := time.Duration(0); at < end; at += TickPeriod {
		for next < len(edges) && edges[next].at <= at {
			on = edges[next].on
			next++
		}
		states = append(states, KeyState{Dit: on})
	}
	return states
}

func TestNewEncoder_NilOutput(t *testing.T) {
	if _, err := NewEncoder(validKeyerConfig(), nil); err != ErrKeyingRequired {
		t.Errorf("NewEncoder(nil) error = %v, want %v", err, ErrKeyingRequired)
	}
}

func TestEncoder_TimingRatios(t *testing.T) {
	tests := []struct {
		speed SpeedLevel
		unit  time.Duration
	}{
		{Speed5WPM, 240 * time.Millisecond},
		{Speed10WPM, 120 * time.Millisecond},
		{Speed15WPM, 80 * time.Millisecond},
	}

	for _, tt := range tests {
		cfg := validKeyerConfig()
		cfg.Speed = tt.speed
		enc, line, clock := newTestEncoder(t, cfg)

		if enc.Unit() != tt.unit {
			t.Errorf("speed %d: Unit() = %v, want %v", tt.speed, enc.Unit(), tt.unit)
		}
		if err := enc.Encode(context.Background(), 'A'); err != nil {
			t.Fatalf("Encode(A) error = %v", err)
		}
		if len(line.edges) != 4 {
			t.Fatalf("speed %d: got %d edges, want 4", tt.speed, len(line.edges))
		}

		dot := line.edges[1].at - line.edges[0].at
		gap := line.edges[2].at - line.edges[1].at
		dash := line.edges[3].at - line.edges[2].at
		tail := clock.now - line.edges[3].at

		if dot != tt.unit {
			t.Errorf("speed %d: dot = %v, want %v", tt.speed, dot, tt.unit)
		}
		if dash != 3*dot {
			t.Errorf("speed %d: dash = %v, want 3 x %v", tt.speed, dash, dot)
		}
		if gap != 3*dot {
			t.Errorf("speed %d: element gap = %v, want 3 x %v", tt.speed, gap, dot)
		}
		if tail != 3*dot {
			t.Errorf("speed %d: trailing gap = %v, want 3 x %v", tt.speed, tail, dot)
		}
	}
}

func TestEncoder_SpaceIsWaitOnly(t *testing.T) {
	enc, line, clock := newTestEncoder(t, validKeyerConfig())

	if err := enc.Encode(context.Background(), Space); err != nil {
		t.Fatalf("Encode(Space) error = %v", err)
	}
	if len(line.edges) != 0 {
		t.Errorf("Space keyed %d edges, want none", len(line.edges))
	}
	if want := SpaceUnits * enc.Unit(); clock.now != want {
		t.Errorf("Space waited %v, want %v", clock.now, want)
	}
}

func TestEncoder_UnsupportedSkipped(t *testing.T) {
	enc, line, clock := newTestEncoder(t, validKeyerConfig())

	for _, c := range []byte{'?', '.', 0} {
		if err := enc.Encode(context.Background(), c); err != nil {
			t.Errorf("Encode(%q) error = %v", c, err)
		}
	}
	if len(line.edges) != 0 || clock.now != 0 {
		t.Errorf("unsupported characters keyed %d edges over %v, want nothing", len(line.edges), clock.now)
	}
}

func TestEncoder_LowerCaseMatchesUpper(t *testing.T) {
	upper, upperLine, _ := newTestEncoder(t, validKeyerConfig())
	lower, lowerLine, _ := newTestEncoder(t, validKeyerConfig())

	if err := upper.EncodeString(context.Background(), "CQ"); err != nil {
		t.Fatalf("EncodeString(CQ) error = %v", err)
	}
	if err := lower.EncodeString(context.Background(), "cq"); err != nil {
		t.Fatalf("EncodeString(cq) error = %v", err)
	}

	if len(upperLine.edges) != len(lowerLine.edges) {
		t.Fatalf("edges = %d, want %d", len(lowerLine.edges), len(upperLine.edges))
	}
	for i := range upperLine.edges {
		if upperLine.edges[i] != lowerLine.edges[i] {
			t.Errorf("edge %d = %v, want %v", i, lowerLine.edges[i], upperLine.edges[i])
		}
	}
}

func TestEncoder_CancelReleasesOutput(t *testing.T) {
	clock := &virtualClock{}
	line := &recordingLine{clock: clock}
	out := NewOutput(TonePTT, line, nil)
	enc, err := NewEncoder(validKeyerConfig(), out)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	enc.SetSleeper(clock.sleep)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = enc.Encode(ctx, 'T')
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Encode() error = %v, want context.Canceled", err)
	}
	if out.Keyed() || line.on {
		t.Error("output left keyed after cancellation")
	}
}

func TestEncoder_AssertErrorReleases(t *testing.T) {
	clock := &virtualClock{}
	broken := errors.New("port closed")
	line := &recordingLine{clock: clock, err: broken}
	out := NewOutput(TonePTT, line, nil)
	enc, err := NewEncoder(validKeyerConfig(), out)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	enc.SetSleeper(clock.sleep)

	if err := enc.Pulse(context.Background(), Dot); !errors.Is(err, broken) {
		t.Errorf("Pulse() error = %v, want %v", err, broken)
	}
	if out.Keyed() {
		t.Error("output left keyed after assert error")
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	for _, speed := range []SpeedLevel{Speed5WPM, Speed10WPM, Speed15WPM} {
		cfg := validKeyerConfig()
		cfg.Speed = speed

		for char := range Patterns {
			enc, line, clock := newTestEncoder(t, cfg)
			if err := enc.Encode(context.Background(), char); err != nil {
				t.Fatalf("Encode(%q) error = %v", char, err)
			}

			// Idle long enough for the character boundary
			end := clock.now + time.Duration(CharBoundaryUnits+1)*enc.Unit()

			c, q := newTestClassifier(t, cfg)
			for _, key := range sampleTicks(line.edges, end) {
				c.Tick(key)
			}

			if got := drain(q); got != string(char) {
				t.Errorf("speed %d: round trip of %q decoded %q", speed, char, got)
			}
		}
	}
}

func TestEncoder_SetConfigChangesUnit(t *testing.T) {
	enc, _, _ := newTestEncoder(t, validKeyerConfig())

	slow := validKeyerConfig()
	slow.Speed = Speed5WPM
	enc.SetConfig(slow)

	if enc.Unit() != 240*time.Millisecond {
		t.Errorf("Unit() = %v, want 240ms", enc.Unit())
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext(cancelled) error = %v, want context.Canceled", err)
	}
}
