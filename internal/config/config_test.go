package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"triggerd/internal/trigger"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
notify:
  base_url: http://127.0.0.1:9000
  request_timeout: 10s
triggers:
  - name: doorbell
    target_id: phone-1
    token: tok-123
    text: Hi
    title: Front door
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Notify.BaseURL != "http://127.0.0.1:9000" {
		t.Fatalf("base_url = %q", cfg.Notify.BaseURL)
	}
	if len(cfg.Triggers) != 1 || cfg.Triggers[0].Title != "Front door" {
		t.Fatalf("triggers = %+v", cfg.Triggers)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "notify": {"base_url": "http://localhost:9000"},
  "triggers": [],
  "bogus_section": {}
}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown top-level key must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"notify":{"base_url":"x"},"triggers":[]}{}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("trailing JSON must be rejected")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Notify: NotifyConfig{BaseURL: "http://localhost:9000"},
			Triggers: []trigger.Definition{
				{Name: "a", TargetID: "t", Token: "k", Text: "x"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing base url", func(c *Config) { c.Notify.BaseURL = " " }, "base_url"},
		{"bad timeout", func(c *Config) { c.Notify.RequestTimeout = "soon" }, "request_timeout"},
		{"bad storage driver", func(c *Config) {
			c.Storage = &StorageConfig{Driver: "redis", Path: "x"}
		}, "unknown driver"},
		{"duplicate trigger names", func(c *Config) {
			c.Triggers = append(c.Triggers, trigger.Definition{Name: "a", TargetID: "t2", Token: "k", Text: "y"})
		}, "duplicate"},
		{"incomplete definition accepted", func(c *Config) {
			c.Triggers = append(c.Triggers, trigger.Definition{Name: "b"})
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeChangeTriggers(t *testing.T) {
	oldCfg := &Config{
		Notify: NotifyConfig{BaseURL: "http://localhost:9000"},
		Triggers: []trigger.Definition{
			{Name: "doorbell", TargetID: "t", Token: "k", Text: "Hi"},
			{Name: "laundry", TargetID: "t", Token: "k", Text: "Done"},
		},
	}
	newCfg := &Config{
		Notify: NotifyConfig{BaseURL: "http://localhost:9000"},
		Triggers: []trigger.Definition{
			{Name: "doorbell", TargetID: "t", Token: "k", Text: "Ding"}, // edited
			// laundry removed: must not be reported
			{Name: "mailbox", TargetID: "t", Token: "k", Text: "Mail"}, // added
		},
	}

	changed, _, names := SummarizeChange(oldCfg, newCfg)

	if len(changed) != 1 || changed[0] != "triggers" {
		t.Fatalf("changed = %v", changed)
	}
	want := []string{"doorbell", "mailbox"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("names = %v, want %v (removals are not changes)", names, want)
	}
}

func TestSummarizeChangeNeverEmitsTokens(t *testing.T) {
	oldCfg := &Config{Notify: NotifyConfig{BaseURL: "x"}}
	newCfg := &Config{
		Notify: NotifyConfig{BaseURL: "x"},
		API:    APIConfig{Enabled: true, Addr: "127.0.0.1:8686", Token: "super-secret"},
	}

	_, attrs, _ := SummarizeChange(oldCfg, newCfg)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := logger.Log()
	for _, f := range attrs {
		f(e)
	}
	e.Msg("summary")

	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Fatalf("token leaked into log attrs: %s", out)
	}
	if !strings.Contains(out, `"api.token_set":true`) {
		t.Fatalf("summary should report token presence only: %s", out)
	}
}

func TestSummarizeChangeReportsStoragePathMove(t *testing.T) {
	oldCfg := &Config{
		Notify:  NotifyConfig{BaseURL: "http://localhost:9000"},
		Storage: &StorageConfig{Driver: "file", Path: "/var/lib/triggerd/a.db"},
	}
	newCfg := &Config{
		Notify:  NotifyConfig{BaseURL: "http://localhost:9000"},
		Storage: &StorageConfig{Driver: "file", Path: "/var/lib/triggerd/b.db"},
	}

	changed, attrs, _ := SummarizeChange(oldCfg, newCfg)

	if len(changed) != 1 || changed[0] != "storage" {
		t.Fatalf("changed = %v, want [storage]", changed)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := logger.Log()
	for _, f := range attrs {
		f(e)
	}
	e.Msg("summary")
	if !strings.Contains(buf.String(), "/var/lib/triggerd/b.db") {
		t.Fatalf("attrs do not carry the new path: %s", buf.String())
	}
}
