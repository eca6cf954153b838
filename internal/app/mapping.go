package app

import (
	"fmt"
	"strings"
	"time"

	"quiethours/internal/mail"
	pprofsvc "quiethours/internal/observability/pprof"
	"quiethours/internal/reminder"
	"quiethours/internal/storage"
	"quiethours/pkg/logx"
)

func mapLogConfig(cfg *Config) logx.Config {
	if cfg == nil {
		return logx.Config{Console: true}
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, fmt.Errorf("storage section is required")
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 1*time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapReminderConfig(cfg *Config) (reminder.Config, error) {
	var out reminder.Config
	if cfg == nil {
		return out, nil
	}
	rc := cfg.Reminder

	out.Enabled = rc.Enabled
	out.Schedule = strings.TrimSpace(rc.Schedule)

	lead, err := parseDurationField("reminder.lead", rc.Lead)
	if err != nil {
		return out, err
	}
	window, err := parseDurationField("reminder.window", rc.Window)
	if err != nil {
		return out, err
	}
	sendTO, err := parseDurationField("reminder.send_timeout", rc.SendTimeout)
	if err != nil {
		return out, err
	}
	if rc.Workers < 0 {
		return out, fmt.Errorf("reminder.workers must be >= 0")
	}
	if rc.RatePerSec < 0 {
		return out, fmt.Errorf("reminder.rate_per_sec must be >= 0")
	}

	out.Lead = lead
	out.Window = window
	out.SendTimeout = sendTO
	out.Workers = rc.Workers
	out.RatePerSec = rc.RatePerSec
	return out, nil
}

func mapMailConfig(cfg *Config) (mail.Config, error) {
	var out mail.Config
	if cfg == nil {
		return out, nil
	}
	mc := cfg.Mail

	timeout, err := parseDurationOrDefault("mail.timeout", mc.Timeout, 15*time.Second)
	if err != nil {
		return out, err
	}
	out = mail.Config{
		Host:     strings.TrimSpace(mc.Host),
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		From:     strings.TrimSpace(mc.From),
		Timeout:  timeout,
	}
	return out, nil
}

func mapPprofConfig(cfg *Config) (pprofsvc.Config, error) {
	var out pprofsvc.Config
	if cfg == nil {
		return out, nil
	}
	pc := cfg.Pprof

	out.Enabled = pc.Enabled
	out.AllowInsecure = pc.AllowInsecure
	out.Token = strings.TrimSpace(pc.Token)
	out.Addr = strings.TrimSpace(pc.Addr)
	out.Prefix = strings.TrimSpace(pc.Prefix)

	if out.Addr == "" {
		out.Addr = "127.0.0.1:6060"
	}
	if out.Prefix == "" {
		out.Prefix = "/debug/pprof/"
	}

	// durations
	readTO, err := parseDurationOrDefault("pprof.read_timeout", pc.ReadTimeout, 5*time.Second)
	if err != nil {
		return out, err
	}
	writeTO, err := parseDurationField("pprof.write_timeout", pc.WriteTimeout)
	if err != nil {
		return out, err
	}
	idleTO, err := parseDurationOrDefault("pprof.idle_timeout", pc.IdleTimeout, 120*time.Second)
	if err != nil {
		return out, err
	}
	out.ReadTimeout = readTO
	out.WriteTimeout = writeTO // default 0 (disabled)
	out.IdleTimeout = idleTO

	// runtime profiling rates
	if pc.MutexProfileFraction < 0 {
		return out, fmt.Errorf("pprof.mutex_profile_fraction must be >= 0")
	}
	if pc.BlockProfileRate < 0 {
		return out, fmt.Errorf("pprof.block_profile_rate must be >= 0")
	}
	if pc.MemProfileRate < 0 {
		return out, fmt.Errorf("pprof.mem_profile_rate must be >= 0")
	}
	out.MutexProfileFraction = pc.MutexProfileFraction
	out.BlockProfileRate = pc.BlockProfileRate
	out.MemProfileRate = pc.MemProfileRate

	return out, nil
}
