// internal/console/display.go
package console

import (
	"io"
	"sync"
)

// DefaultWidth is the wrap column of the display
const DefaultWidth = 64

// Display is an engine sink that prints characters as they are consumed,
// wrapping at the first space past the width.
type Display struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	col   int
	eol   string
}

// NewDisplay writes to w. A width below 1 uses DefaultWidth.
func NewDisplay(w io.Writer, width int) *Display {
	if width < 1 {
		width = DefaultWidth
	}
	return &Display{w: w, width: width, eol: "\n"}
}

// Consume prints c.
func (d *Display) Consume(c byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c == ' ' {
		if d.col == 0 {
			return
		}
		if d.col >= d.width {
			d.newline()
			return
		}
	}
	_, _ = d.w.Write([]byte{c})
	d.col++
}

// SetRawTerminal ends lines with CR LF, as a terminal in raw mode needs.
func (d *Display) SetRawTerminal(raw bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if raw {
		d.eol = "\r\n"
	} else {
		d.eol = "\n"
	}
}

// Flush ends the current line.
func (d *Display) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.col > 0 {
		d.newline()
	}
}

func (d *Display) newline() {
	_, _ = io.WriteString(d.w, d.eol)
	d.col = 0
}
