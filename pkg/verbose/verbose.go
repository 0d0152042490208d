// Package verbose holds the process-wide trace switch used by the CLI tools.
package verbose

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	enabled bool
	out     io.Writer = os.Stderr
)

// SetEnabled sets the global verbose logging flag
func SetEnabled(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = enable
}

// IsEnabled returns whether verbose logging is enabled
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects verbose output
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Printf prints a verbose message if verbose logging is enabled
func Printf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		fmt.Fprintf(out, "[VERBOSE] "+format+"\n", args...)
	}
}
