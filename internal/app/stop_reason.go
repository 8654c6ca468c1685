package app

import (
	"os"
	"syscall"
)

// StopReason records why the daemon is shutting down; it is logged and
// nothing else.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// ReasonForSignal maps a shutdown signal to its stop reason. Anything
// that is not SIGTERM arrived via the interrupt path (Ctrl-C).
func ReasonForSignal(sig os.Signal) StopReason {
	if sig == syscall.SIGTERM {
		return StopSIGTERM
	}
	return StopSIGINT
}
