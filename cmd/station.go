// cmd/station.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ColonelBlimp/cwkeyer/internal/config"
	"github.com/ColonelBlimp/cwkeyer/internal/console"
	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/ColonelBlimp/cwkeyer/internal/recovery"
	"github.com/ColonelBlimp/cwkeyer/internal/serialport"
	"github.com/ColonelBlimp/cwkeyer/internal/sidetone"
	"github.com/ColonelBlimp/cwkeyer/internal/transceiver"
)

// stationConfig selects what a command needs from the hardware
type stationConfig struct {
	mode     transceiver.Mode
	sinks    []transceiver.Sink
	observer transceiver.Observer
	out      io.Writer
}

// station is the engine with the serial device and sidetone it keys
type station struct {
	engine  *transceiver.Engine
	port    *serialport.Port
	tone    *sidetone.Generator
	display *console.Display
	closers []func() error
}

func openStation(ctx context.Context, s *config.Settings, sc stationConfig) (*station, error) {
	st := &station{display: console.NewDisplay(sc.out, console.DefaultWidth)}

	keyer := s.Keyer()
	opts := transceiver.Options{
		Keyer:    keyer,
		Mode:     sc.mode,
		Sinks:    append([]transceiver.Sink{st.display}, sc.sinks...),
		Observer: sc.observer,
		Debug:    s.Debug,
	}

	if s.SerialPort != "" {
		port, err := serialport.Open(s.SerialPort, s.BaudRate, s.Debug)
		if err != nil {
			return nil, fmt.Errorf("open serial port: %w", err)
		}
		st.port = port
		st.closers = append(st.closers, port.Close)
		opts.Key = port
		opts.PTT = port
	}

	if s.SpeakerOut && keyer.Tone.UsesTone() {
		tone, err := startSidetone(ctx, s)
		if err != nil {
			log.Printf("SIDETONE: muted: %v", err)
		} else {
			st.tone = tone
			st.closers = append(st.closers, tone.Close)
			opts.Tone = tone
		}
	}

	engine, err := transceiver.New(opts)
	if err != nil {
		_ = st.closeDevices()
		return nil, fmt.Errorf("create keyer: %w", err)
	}
	st.engine = engine
	recovery.SetRelease(func() { _ = engine.Release() })

	if s.Debug {
		log.Printf("KEYER: %s mode, %s key, %d WPM, %s output", sc.mode, keyer.Mode, keyer.WPM(), keyer.Tone)
	}
	return st, nil
}

func startSidetone(ctx context.Context, s *config.Settings) (*sidetone.Generator, error) {
	cfg := sidetone.DefaultConfig()
	cfg.SampleRate = uint32(s.SampleRate)
	cfg.Frequency = s.ToneFrequency

	gen, err := sidetone.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := gen.Init(); err != nil {
		return nil, err
	}
	if err := gen.Start(ctx); err != nil {
		_ = gen.Close()
		return nil, err
	}
	return gen, nil
}

// keyer returns the active codec configuration
func (st *station) keyer() cw.KeyerConfig {
	return st.engine.Config()
}

func (st *station) close() error {
	recovery.SetRelease(nil)
	err := st.engine.Release()
	st.display.Flush()
	return errors.Join(err, st.closeDevices())
}

func (st *station) closeDevices() error {
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
