package monitoring

import "log"

// Logf is the package-level diagnostic logger used for chatty per-sentence
// output (satellite SNRs, DOP and speed readings, dedup skips). It defaults
// to a no-op; EnableDebug routes it to log.Printf.
var Logf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// EnableDebug switches diagnostic output on or off.
func EnableDebug(on bool) {
	if on {
		SetLogger(func(format string, v ...interface{}) {
			log.Printf("[debug] "+format, v...)
		})
		return
	}
	SetLogger(nil)
}
