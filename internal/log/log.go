// Package log provides the package-level, toggleable tracing used across
// sparkwheel, in the same shape as the teacher's package-level DEBUG/TRACE
// helpers: a bool flag flipped by an environment variable, rather than a
// logger instance threaded through every call.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
)

// DebugOn gates Debug output. Tests flip it directly; production reads
// SPARKWHEEL_DEBUG once at process start.
var DebugOn = envFlag("SPARKWHEEL_DEBUG")

// TraceOn gates the more verbose Trace output (per-reference substitution,
// per-node classification).
var TraceOn = envFlag("SPARKWHEEL_TRACE")

func envFlag(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	return v != "" && v != "0" && v != "false"
}

// Debug prints a formatted, ansi-colored diagnostic line to stderr when
// DebugOn is set.
func Debug(format string, args ...any) {
	if !DebugOn {
		return
	}
	fmt.Fprintf(os.Stderr, ansi.Sprintf("@B{DEBUG} ")+format+"\n", args...)
}

// Trace prints a more granular diagnostic line, used inside hot paths like
// reference substitution where Debug would be too noisy.
func Trace(format string, args ...any) {
	if !TraceOn {
		return
	}
	fmt.Fprintf(os.Stderr, ansi.Sprintf("@b{TRACE} ")+format+"\n", args...)
}

// Warn prints a warning to stderr, used for the soft failures spec §7
// documents (duplicate keys, path traversal, missing references under the
// lenient toggle).
func Warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, ansi.Sprintf("@Y{warning:} ")+format+"\n", args...)
}
