//go:build integration

package serialport

import (
	"os"
	"testing"
	"time"
)

// Run with: CWKEYER_TEST_PORT=/dev/ttyUSB0 go test -tags=integration ./internal/serialport/
func TestIntegration_OpenAndKey(t *testing.T) {
	name := os.Getenv("CWKEYER_TEST_PORT")
	if name == "" {
		t.Skip("CWKEYER_TEST_PORT not set")
	}

	p, err := Open(name, 9600, true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	t.Logf("key state: %+v", p.Key())

	if err := p.Set(true); err != nil {
		t.Fatalf("Set(true) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := p.Set(false); err != nil {
		t.Fatalf("Set(false) error = %v", err)
	}
}

func TestIntegration_ListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Fatalf("ListPorts() error = %v", err)
	}
	for _, p := range ports {
		t.Logf("found port: %s", p)
	}
}
