// internal/sidetone/oscillator.go
package sidetone

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// rampSeconds is the attack and release time of the tone envelope
const rampSeconds = 0.005

// oscillator renders a gated sine into little-endian float32 frames.
// render runs on the audio thread; gate may be called from anywhere.
type oscillator struct {
	phase     float64
	step      float64
	amplitude float32
	gain      float32
	rampStep  float32
	on        atomic.Bool
}

func newOscillator(frequency float64, sampleRate uint32, amplitude float32) *oscillator {
	rate := float64(sampleRate)
	return &oscillator{
		step:      2 * math.Pi * frequency / rate,
		amplitude: amplitude,
		rampStep:  float32(1 / (rampSeconds * rate)),
	}
}

func (o *oscillator) gate(on bool) {
	o.on.Store(on)
}

// render fills out with mono float32 samples without allocating.
// The envelope ramps toward the gate state so keying does not click.
func (o *oscillator) render(out []byte) {
	target := float32(0)
	if o.on.Load() {
		target = 1
	}

	for i := 0; i+4 <= len(out); i += 4 {
		switch {
		case o.gain < target:
			o.gain = min(o.gain+o.rampStep, target)
		case o.gain > target:
			o.gain = max(o.gain-o.rampStep, target)
		}

		var sample float32
		if o.gain > 0 {
			sample = o.amplitude * o.gain * float32(math.Sin(o.phase))
		}
		binary.LittleEndian.PutUint32(out[i:], math.Float32bits(sample))

		o.phase += o.step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}
