package app

import (
	"os"
	"syscall"
	"testing"
)

func TestReasonForSignal(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want StopReason
	}{
		{syscall.SIGTERM, StopSIGTERM},
		{os.Interrupt, StopSIGINT},
		{syscall.SIGINT, StopSIGINT},
	}
	for _, tc := range tests {
		if got := ReasonForSignal(tc.sig); got != tc.want {
			t.Fatalf("ReasonForSignal(%v) = %q, want %q", tc.sig, got, tc.want)
		}
	}
}
