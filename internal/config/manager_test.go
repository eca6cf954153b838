package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestParseYAML(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./quiethours.db
reminder:
  enabled: true
  lead: 10m
  window: 1m
mail:
  host: smtp.example.com
  port: 587
  from: reminders@example.com
`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage: %+v", cfg.Storage)
	}
	if !cfg.Reminder.Enabled || cfg.Reminder.Lead != "10m" || cfg.Reminder.Window != "1m" {
		t.Fatalf("reminder: %+v", cfg.Reminder)
	}
	if cfg.Mail.Port != 587 {
		t.Fatalf("mail: %+v", cfg.Mail)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	p := writeConfig(t, "config.json", `{"storage": {"driver": "sqlite"}, "remnider": {"enabled": true}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatal("misspelled section must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	p := writeConfig(t, "config.json", `{"storage": {"driver": "sqlite"}} {"extra": 1}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatal("trailing tokens must be rejected")
	}
}

func TestDiffNeverLeaksSecrets(t *testing.T) {
	oldCfg := &Config{}
	newCfg := &Config{
		Mail:  MailConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "hunter2", From: "r@example.com"},
		Pprof: PprofConfig{Enabled: true, Token: "sekrit"},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) == 0 {
		t.Fatal("expected changes")
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ev := logger.Info()
	for _, a := range attrs {
		a(ev)
	}
	ev.Msg("config changed")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "sekrit") {
		t.Fatalf("secret leaked into log attrs: %s", out)
	}
	if !strings.Contains(out, "smtp.example.com") {
		t.Fatalf("expected mail host in attrs: %s", out)
	}
}
