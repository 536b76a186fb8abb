package monitoring

import "log"

// Logf is the package-level diagnostic logger used across the localization
// pipeline. It defaults to log.Printf but may be replaced via SetLogger so
// tests and embedding processes can redirect or mute diagnostics.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Mute silences the package logger and returns a function that restores the
// previous logger. Intended for test setup:
//
//	defer monitoring.Mute()()
func Mute() (restore func()) {
	prev := Logf
	Logf = func(string, ...interface{}) {}
	return func() { Logf = prev }
}
