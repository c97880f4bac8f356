package glass

import (
	"fmt"
	"os"
)

// debugEnabled gates diagnostic output. Set once at startup; reads are not
// synchronized.
var debugEnabled bool

// SetDebugMode enables or disables diagnostic logging to stderr: field
// rasterization timings, cache hits and misses, sink fallbacks and
// compositor degradation.
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

// DebugMode reports whether diagnostic logging is enabled.
func DebugMode() bool {
	return debugEnabled
}

// debugLogf prints a tagged line to stderr when debug mode is on.
func debugLogf(format string, args ...any) {
	if !debugEnabled {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "[glass] "+format+"\n", args...)
}

// warnf prints a tagged warning to stderr regardless of debug mode. Used
// only for failures the caller cannot observe through a return value.
func warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "[glass] warning: "+format+"\n", args...)
}
