// internal/sidetone/sidetone.go
package sidetone

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("sidetone not initialized")
	ErrAlreadyRunning = errors.New("sidetone already running")
	ErrNotRunning     = errors.New("sidetone not running")
	ErrInvalidConfig  = errors.New("invalid sidetone config")
)

// Config holds sidetone playback configuration
type Config struct {
	DeviceIndex int     // -1 for default device
	SampleRate  uint32  // e.g., 48000
	Frequency   float64 // tone frequency in Hz
	Amplitude   float32 // 0.0 to 1.0
	BufferSize  uint32  // frames per callback
}

// DefaultConfig returns the classic keyer sidetone
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Frequency:   750,
		Amplitude:   0.5,
		BufferSize:  256,
	}
}

func (c Config) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", ErrInvalidConfig)
	}
	if c.Frequency <= 0 || c.Frequency >= float64(c.SampleRate)/2 {
		return fmt.Errorf("%w: frequency %v Hz outside (0, %v)", ErrInvalidConfig, c.Frequency, c.SampleRate/2)
	}
	if c.Amplitude < 0 || c.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude %v outside [0, 1]", ErrInvalidConfig, c.Amplitude)
	}
	return nil
}

// Generator plays a keyed sine tone on an audio output device.
// It is the tone line of the keying output.
type Generator struct {
	config  Config
	osc     *oscillator
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex
}

// New creates a new sidetone generator
func New(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Generator{
		config: cfg,
		osc:    newOscillator(cfg.Frequency, cfg.SampleRate, cfg.Amplitude),
	}, nil
}

// Set gates the tone. It only flips an atomic flag, so it is safe to call
// from the keying path at any time, also before Start.
func (g *Generator) Set(on bool) error {
	g.osc.gate(on)
	return nil
}

// Init initializes the audio backend
func (g *Generator) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	g.ctx = ctx
	return nil
}

// ListDevices returns available playback devices
func (g *Generator) ListDevices() ([]malgo.DeviceInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := g.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start opens the playback device. The tone stays silent until Set(true).
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrAlreadyRunning
	}
	if g.ctx == nil {
		g.mu.Unlock()
		return ErrNotInitialized
	}
	g.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = g.config.SampleRate
	deviceConfig.PeriodSizeInFrames = g.config.BufferSize
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1

	if g.config.DeviceIndex >= 0 {
		devices, err := g.ListDevices()
		if err != nil {
			return err
		}
		if g.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				g.config.DeviceIndex, len(devices))
		}
		deviceConfig.Playback.DeviceID = devices[g.config.DeviceIndex].ID.Pointer()
	}

	onSendFrames := func(outputSamples, _ []byte, _ uint32) {
		g.osc.render(outputSamples)
	}

	device, err := malgo.InitDevice(g.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	g.mu.Lock()
	g.device = device
	g.running = true
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = g.Stop()
	}()

	return nil
}

// Stop silences the tone and closes the playback device
func (g *Generator) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return ErrNotRunning
	}

	g.osc.gate(false)
	if g.device != nil {
		_ = g.device.Stop()
		g.device.Uninit()
		g.device = nil
	}

	g.running = false
	return nil
}

// Close releases all audio resources
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.osc.gate(false)
	if g.running && g.device != nil {
		_ = g.device.Stop()
		g.device.Uninit()
		g.device = nil
		g.running = false
	}

	if g.ctx != nil {
		if err := g.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		g.ctx.Free()
		g.ctx = nil
	}
	return nil
}

// IsRunning returns true if playback is active
func (g *Generator) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}
