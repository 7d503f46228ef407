package cw

import (
	"testing"
)

func TestOutput_ToneModes(t *testing.T) {
	tests := []struct {
		mode     ToneMode
		wantPTT  bool
		wantTone bool
	}{
		{TonePTT, true, false},
		{ToneOnly, false, true},
		{TonePTTAndTone, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			clock := &virtualClock{}
			ptt := &recordingLine{clock: clock}
			tone := &recordingLine{clock: clock}
			out := NewOutput(tt.mode, ptt, tone)

			if err := out.Assert(); err != nil {
				t.Fatalf("Assert() error = %v", err)
			}
			if ptt.on != tt.wantPTT {
				t.Errorf("PTT = %v, want %v", ptt.on, tt.wantPTT)
			}
			if tone.on != tt.wantTone {
				t.Errorf("tone = %v, want %v", tone.on, tt.wantTone)
			}

			if err := out.Release(); err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if ptt.on || tone.on {
				t.Errorf("after Release PTT = %v tone = %v, want both off", ptt.on, tone.on)
			}
		})
	}
}

func TestOutput_PTTOverrideHoldsPTT(t *testing.T) {
	clock := &virtualClock{}
	ptt := &recordingLine{clock: clock}
	tone := &recordingLine{clock: clock}
	out := NewOutput(TonePTTAndTone, ptt, tone)

	if err := out.SetPTTOverride(true); err != nil {
		t.Fatalf("SetPTTOverride() error = %v", err)
	}
	if !ptt.on {
		t.Fatal("override did not assert PTT")
	}

	_ = out.Assert()
	_ = out.Release()
	if !ptt.on {
		t.Error("Release dropped PTT while the override is set")
	}
	if tone.on {
		t.Error("Release left the tone on")
	}

	on, err := out.TogglePTTOverride()
	if err != nil {
		t.Fatalf("TogglePTTOverride() error = %v", err)
	}
	if on || out.PTTOverride() {
		t.Error("TogglePTTOverride() did not clear the latch")
	}
	if ptt.on {
		t.Error("clearing the override left PTT asserted")
	}
}

func TestOutput_SetMode(t *testing.T) {
	clock := &virtualClock{}
	ptt := &recordingLine{clock: clock}
	tone := &recordingLine{clock: clock}
	out := NewOutput(TonePTT, ptt, tone)

	out.SetMode(ToneOnly)
	_ = out.Assert()
	if ptt.on || !tone.on {
		t.Errorf("PTT = %v tone = %v, want tone only", ptt.on, tone.on)
	}
	if !out.Keyed() {
		t.Error("Keyed() = false after Assert")
	}
}

func TestOutput_NilLines(t *testing.T) {
	out := NewOutput(TonePTTAndTone, nil, nil)
	if err := out.Assert(); err != nil {
		t.Errorf("Assert() error = %v", err)
	}
	if err := out.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}
