// internal/console/input.go
// Package console shows decoded and sent text on the terminal and turns typed
// keys into host text.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"golang.org/x/term"
)

// ErrInterrupted is returned when the operator presses Ctrl-C or Ctrl-D
var ErrInterrupted = errors.New("interrupted from keyboard")

const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
	keyCtrlT = 0x14
	keyEnter = '\r'
	keyLF    = '\n'
)

// Input reads typed keys. Printable Morse characters go to Push, Enter is a
// word space and Ctrl-T toggles the PTT latch.
type Input struct {
	Push      func(c byte) error
	TogglePTT func() (bool, error)
	Debug     bool
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Run puts f into raw mode when it is a terminal and reads keys until ctx is
// done, the input ends or the operator interrupts. The terminal is restored on
// return.
func (in *Input) Run(ctx context.Context, f *os.File) error {
	if IsTerminal(f) {
		fd := int(f.Fd())
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer func() {
			_ = term.Restore(fd, oldState)
		}()
	}

	// A blocked Read cannot be cancelled; the reader goroutine ends with the
	// next key or at exit.
	errCh := make(chan error, 1)
	go func() {
		errCh <- in.read(ctx, f)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (in *Input) read(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 32)
	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			if ctx.Err() != nil {
				return nil
			}
			if err := in.handle(c); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read keyboard: %w", err)
		}
	}
}

func (in *Input) handle(c byte) error {
	switch c {
	case keyCtrlC, keyCtrlD:
		return ErrInterrupted
	case keyCtrlT:
		if in.TogglePTT == nil {
			return nil
		}
		on, err := in.TogglePTT()
		if err != nil {
			return fmt.Errorf("toggle PTT: %w", err)
		}
		if in.Debug {
			log.Printf("CONSOLE: PTT override %v", on)
		}
		return nil
	case keyEnter, keyLF:
		c = cw.Space
	}

	if !cw.Supported(c) || in.Push == nil {
		return nil
	}
	if err := in.Push(c); err != nil && in.Debug {
		log.Printf("CONSOLE: dropped %q: %v", c, err)
	}
	return nil
}
