// internal/transceiver/mode.go
package transceiver

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects where characters come from.
type Mode uint8

const (
	// Keyer decodes the key and ignores host text
	Keyer Mode = iota
	// Host keys text received from the serial link or the terminal
	Host
)

// ErrInvalidMode indicates an unknown input mode
var ErrInvalidMode = errors.New("input mode must be keyer or host")

// ParseMode parses "keyer" or "host".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keyer":
		return Keyer, nil
	case "host":
		return Host, nil
	}
	return 0, fmt.Errorf("%w, got %q", ErrInvalidMode, s)
}

func (m Mode) String() string {
	if m == Host {
		return "host"
	}
	return "keyer"
}
