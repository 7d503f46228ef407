// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"
)

// release unkeys the transmitter. Set once the keying output exists.
var release atomic.Pointer[func()]

// exit is replaced in tests
var exit = os.Exit

// SetRelease registers the function that unkeys the transmitter after a panic,
// so a crash never leaves PTT or the sidetone asserted. Pass nil to clear it.
func SetRelease(fn func()) {
	if fn == nil {
		release.Store(nil)
		return
	}
	release.Store(&fn)
}

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details, unkeys the transmitter and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		fail(r, nil)
	}
}

// HandlePanicFunc logs panic details and calls the provided cleanup function
// before unkeying the transmitter.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		fail(r, cleanup)
	}
}

func fail(r any, cleanup func()) {
	_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
	if cleanup != nil {
		cleanup()
	}
	if fn := release.Load(); fn != nil {
		(*fn)()
	}
	exit(1)
}
