// internal/serialport/port.go
package serialport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"go.bug.st/serial"
)

var (
	ErrNotOpen  = errors.New("serial port not open")
	ErrNoDevice = errors.New("serial port name is empty")
)

// readTimeout bounds each Read so ReadText notices cancellation
const readTimeout = 100 * time.Millisecond

// Port is a serial device wired as a keyer interface: the key contacts close
// DTR onto CTS (dit or straight key) and DSR (dah), RTS drives PTT and the
// data lines carry host text.
type Port struct {
	name  string
	debug bool

	mu   sync.Mutex
	conn serial.Port

	keyFailed atomic.Bool
}

// Open opens the device at 8N1 and powers the key contacts.
func Open(name string, baudRate int, debug bool) (*Port, error) {
	if name == "" {
		return nil, ErrNoDevice
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	p, err := newPort(name, conn, debug)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newPort(name string, conn serial.Port, debug bool) (*Port, error) {
	if err := conn.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := conn.SetDTR(true); err != nil {
		return nil, fmt.Errorf("power key contacts: %w", err)
	}
	if err := conn.SetRTS(false); err != nil {
		return nil, fmt.Errorf("release PTT: %w", err)
	}
	return &Port{name: name, conn: conn, debug: debug}, nil
}

// ListPorts returns the serial devices present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Name returns the device name.
func (p *Port) Name() string {
	return p.name
}

func (p *Port) port() (serial.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, ErrNotOpen
	}
	return p.conn, nil
}

// Key samples the key contacts. A failed read reports the key as released;
// the first failure is logged.
func (p *Port) Key() cw.KeyState {
	conn, err := p.port()
	if err != nil {
		return cw.KeyState{}
	}
	bits, err := conn.GetModemStatusBits()
	if err != nil {
		if !p.keyFailed.Swap(true) {
			log.Printf("SERIAL: read key contacts on %s: %v", p.name, err)
		}
		return cw.KeyState{}
	}
	if p.keyFailed.Swap(false) {
		log.Printf("SERIAL: key contacts on %s readable again", p.name)
	}
	return cw.KeyState{Dit: bits.CTS, Dah: bits.DSR}
}

// Set drives the PTT line.
func (p *Port) Set(on bool) error {
	conn, err := p.port()
	if err != nil {
		return err
	}
	if err := conn.SetRTS(on); err != nil {
		return fmt.Errorf("set PTT: %w", err)
	}
	return nil
}

// Accepted reports whether c is allowed on the host text link:
// digits, letters and space.
func Accepted(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	}
	return c == ' '
}

// ReadText reads host text until ctx is done and hands every accepted byte to
// push. Push errors drop the byte.
func (p *Port) ReadText(ctx context.Context, push func(c byte) error) error {
	conn, err := p.port()
	if err != nil {
		return err
	}

	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read host text: %w", err)
		}
		for _, c := range buf[:n] {
			if !Accepted(c) {
				continue
			}
			if err := push(c); err != nil && p.debug {
				log.Printf("SERIAL: dropped %q: %v", c, err)
			}
		}
	}
}

// Close releases PTT and closes the device.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	_ = p.conn.SetRTS(false)
	err := p.conn.Close()
	p.conn = nil
	return err
}
