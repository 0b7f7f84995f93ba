// Package monitoring routes background-worker diagnostics through a
// swappable logger, so tests that drive refit cycles can capture or mute
// the output.
package monitoring

import "log"

// Logf is the diagnostic logger used by background components. It defaults
// to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the diagnostic logger. A nil argument installs a no-op
// logger, muting diagnostics entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
