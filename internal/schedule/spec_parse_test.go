package schedule

import (
	"testing"
	"time"

	logx "triggerd/pkg/logx"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in       string
		kind     SpecKind
		cronExpr string
		every    time.Duration
		wantErr  bool
	}{
		{"*/5 * * * *", SpecCron, "*/5 * * * *", 0, false},
		{"@hourly", SpecCron, "@hourly", 0, false},
		{"cron:55 * * * *", SpecCron, "55 * * * *", 0, false},
		{"55m", SpecInterval, "", 55 * time.Minute, false},
		{"2h30m", SpecInterval, "", 2*time.Hour + 30*time.Minute, false},
		{"02:30", SpecInterval, "", 2*time.Hour + 30*time.Minute, false},
		{"interval:10s", SpecInterval, "", 10 * time.Second, false},
		{"every:00:50", SpecInterval, "", 50 * time.Minute, false},
		{"", 0, "", 0, true},
		{"-5m", 0, "", 0, true},
		{"02:99", 0, "", 0, true},
		{"soonish", 0, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSpec(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec(%q): %v", tt.in, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Cron != tt.cronExpr {
				t.Fatalf("cron = %q, want %q", got.Cron, tt.cronExpr)
			}
			if got.Every != tt.every {
				t.Fatalf("every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestRunnerRebuildSkipsInvalid(t *testing.T) {
	fired := make(chan string, 8)
	r := NewRunner(func(name string) { fired <- name }, logx.Nop())

	r.Rebuild([]Entry{
		{Name: "bad", Spec: "not a schedule"},
		{Name: "fast", Spec: "interval:10ms"},
	})
	defer r.Stop()

	select {
	case name := <-fired:
		if name != "fast" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interval entry never fired")
	}
}

func TestRunnerRebuildReplacesEntries(t *testing.T) {
	fired := make(chan string, 8)
	r := NewRunner(func(name string) { fired <- name }, logx.Nop())

	r.Rebuild([]Entry{{Name: "old", Spec: "10ms"}})
	r.Rebuild(nil)
	defer r.Stop()

	// drain anything that fired before the rebuild
	for {
		select {
		case <-fired:
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}

	select {
	case name := <-fired:
		t.Fatalf("entry %q fired after removal", name)
	case <-time.After(100 * time.Millisecond):
	}
}
