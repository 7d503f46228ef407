// internal/cw/config.go
package cw

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TickPeriod is the sampling period of the timing classifier (100 Hz)
const TickPeriod = 10 * time.Millisecond

// SpeedLevel selects one of the unit duration presets.
type SpeedLevel uint8

const (
	// Speed5WPM uses a 240ms unit
	Speed5WPM SpeedLevel = iota
	// Speed10WPM uses a 120ms unit
	Speed10WPM
	// Speed15WPM uses an 80ms unit
	Speed15WPM
)

// unitTicks holds the unit length in ticks per speed level
var unitTicks = [...]int{24, 12, 8}

// wpm holds the nominal speed per level
var wpm = [...]int{5, 10, 15}

// KeyerMode selects how key-down periods are classified.
type KeyerMode uint8

const (
	// Straight classifies by key-down duration
	Straight KeyerMode = iota
	// Paddle classifies by which contact is closed
	Paddle
)

// ToneMode selects which keying lines follow the pulses.
type ToneMode uint8

const (
	// TonePTT drives the PTT line only
	TonePTT ToneMode = iota
	// ToneOnly drives the tone generator only
	ToneOnly
	// TonePTTAndTone drives both
	TonePTTAndTone
)

var (
	// ErrInvalidSpeed indicates the speed level is not one of the presets
	ErrInvalidSpeed = errors.New("speed level must be 0, 1 or 2")
	// ErrInvalidKeyerMode indicates an unknown keyer mode
	ErrInvalidKeyerMode = errors.New("keyer mode must be straight or paddle")
	// ErrInvalidToneMode indicates an unknown tone mode
	ErrInvalidToneMode = errors.New("tone mode must be ptt, tone or ptt+tone")
)

// KeyerConfig holds the settings shared by the classifier and the encoder.
// It is treated as immutable while a session runs.
type KeyerConfig struct {
	Speed SpeedLevel
	Mode  KeyerMode
	Tone  ToneMode
}

// Validate checks that every field holds a known value.
func (c KeyerConfig) Validate() error {
	if int(c.Speed) >= len(unitTicks) {
		return ErrInvalidSpeed
	}
	if c.Mode > Paddle {
		return ErrInvalidKeyerMode
	}
	if c.Tone > TonePTTAndTone {
		return ErrInvalidToneMode
	}
	return nil
}

// UnitTicks returns the unit length in classifier ticks.
// Out of range levels fall back to the slowest preset.
func (c KeyerConfig) UnitTicks() int {
	if int(c.Speed) >= len(unitTicks) {
		return unitTicks[Speed5WPM]
	}
	return unitTicks[c.Speed]
}

// Unit returns the unit duration used by the encoder.
func (c KeyerConfig) Unit() time.Duration {
	return time.Duration(c.UnitTicks()) * TickPeriod
}

// WPM returns the nominal words per minute of the speed level.
func (c KeyerConfig) WPM() int {
	if int(c.Speed) >= len(wpm) {
		return wpm[Speed5WPM]
	}
	return wpm[c.Speed]
}

// String returns the config file name of the mode.
func (m KeyerMode) String() string {
	if m == Paddle {
		return "paddle"
	}
	return "straight"
}

// ParseKeyerMode parses "straight" or "paddle".
func ParseKeyerMode(s string) (KeyerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "straight", "key":
		return Straight, nil
	case "paddle":
		return Paddle, nil
	}
	return 0, fmt.Errorf("%w, got %q", ErrInvalidKeyerMode, s)
}

// String returns the config file name of the mode.
func (m ToneMode) String() string {
	switch m {
	case ToneOnly:
		return "tone"
	case TonePTTAndTone:
		return "ptt+tone"
	default:
		return "ptt"
	}
}

// ParseToneMode parses "ptt", "tone" or "ptt+tone".
func ParseToneMode(s string) (ToneMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ptt":
		return TonePTT, nil
	case "tone":
		return ToneOnly, nil
	case "ptt+tone", "ptt_tone", "both":
		return TonePTTAndTone, nil
	}
	return 0, fmt.Errorf("%w, got %q", ErrInvalidToneMode, s)
}

// UsesPTT reports whether the PTT line follows the pulses.
func (m ToneMode) UsesPTT() bool {
	return m == TonePTT || m == TonePTTAndTone
}

// UsesTone reports whether the tone generator follows the pulses.
func (m ToneMode) UsesTone() bool {
	return m == ToneOnly || m == TonePTTAndTone
}
