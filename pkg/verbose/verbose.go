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

// SetEnabled sets the global verbose flag
func SetEnabled(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = enable
}

// IsEnabled returns whether verbose output is enabled
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects verbose output, stderr by default
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Printf prints a verbose trace line if verbose output is enabled
func Printf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		fmt.Fprintf(out, "[VERBOSE] "+format+"\n", args...)
	}
}

// Println prints a verbose trace line if verbose output is enabled
func Println(args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		fmt.Fprintln(out, append([]interface{}{"[VERBOSE]"}, args...)...)
	}
}
