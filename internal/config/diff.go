package config

import (
	"sort"
	"strings"

	"quiethours/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like the
// SMTP password or the pprof token).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Storage
	if strings.TrimSpace(oldCfg.Storage.Driver) != strings.TrimSpace(newCfg.Storage.Driver) ||
		strings.TrimSpace(oldCfg.Storage.Path) != strings.TrimSpace(newCfg.Storage.Path) ||
		strings.TrimSpace(oldCfg.Storage.BusyTimeout) != strings.TrimSpace(newCfg.Storage.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	// Reminder
	if oldCfg.Reminder.Enabled != newCfg.Reminder.Enabled ||
		strings.TrimSpace(oldCfg.Reminder.Schedule) != strings.TrimSpace(newCfg.Reminder.Schedule) ||
		strings.TrimSpace(oldCfg.Reminder.Lead) != strings.TrimSpace(newCfg.Reminder.Lead) ||
		strings.TrimSpace(oldCfg.Reminder.Window) != strings.TrimSpace(newCfg.Reminder.Window) ||
		oldCfg.Reminder.Workers != newCfg.Reminder.Workers ||
		strings.TrimSpace(oldCfg.Reminder.SendTimeout) != strings.TrimSpace(newCfg.Reminder.SendTimeout) ||
		oldCfg.Reminder.RatePerSec != newCfg.Reminder.RatePerSec {
		changed = append(changed, "reminder")
		attrs = append(attrs,
			logx.Bool("reminder.enabled", newCfg.Reminder.Enabled),
			logx.String("reminder.schedule", strings.TrimSpace(newCfg.Reminder.Schedule)),
			logx.String("reminder.lead", strings.TrimSpace(newCfg.Reminder.Lead)),
			logx.String("reminder.window", strings.TrimSpace(newCfg.Reminder.Window)),
			logx.Int("reminder.workers", newCfg.Reminder.Workers),
			logx.Int("reminder.rate_per_sec", newCfg.Reminder.RatePerSec),
		)
	}

	// Mail (never log the password)
	if strings.TrimSpace(oldCfg.Mail.Host) != strings.TrimSpace(newCfg.Mail.Host) ||
		oldCfg.Mail.Port != newCfg.Mail.Port ||
		strings.TrimSpace(oldCfg.Mail.Username) != strings.TrimSpace(newCfg.Mail.Username) ||
		strings.TrimSpace(oldCfg.Mail.From) != strings.TrimSpace(newCfg.Mail.From) ||
		strings.TrimSpace(oldCfg.Mail.Timeout) != strings.TrimSpace(newCfg.Mail.Timeout) ||
		(strings.TrimSpace(oldCfg.Mail.Password) != "") != (strings.TrimSpace(newCfg.Mail.Password) != "") {
		changed = append(changed, "mail")
		attrs = append(attrs,
			logx.String("mail.host", strings.TrimSpace(newCfg.Mail.Host)),
			logx.Int("mail.port", newCfg.Mail.Port),
			logx.String("mail.from", strings.TrimSpace(newCfg.Mail.From)),
			logx.Bool("mail.auth_set", strings.TrimSpace(newCfg.Mail.Username) != ""),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof.Enabled != newCfg.Pprof.Enabled ||
		strings.TrimSpace(oldCfg.Pprof.Addr) != strings.TrimSpace(newCfg.Pprof.Addr) ||
		strings.TrimSpace(oldCfg.Pprof.Prefix) != strings.TrimSpace(newCfg.Pprof.Prefix) ||
		oldCfg.Pprof.AllowInsecure != newCfg.Pprof.AllowInsecure ||
		strings.TrimSpace(oldCfg.Pprof.ReadTimeout) != strings.TrimSpace(newCfg.Pprof.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.WriteTimeout) != strings.TrimSpace(newCfg.Pprof.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.IdleTimeout) != strings.TrimSpace(newCfg.Pprof.IdleTimeout) ||
		oldCfg.Pprof.MutexProfileFraction != newCfg.Pprof.MutexProfileFraction ||
		oldCfg.Pprof.BlockProfileRate != newCfg.Pprof.BlockProfileRate ||
		oldCfg.Pprof.MemProfileRate != newCfg.Pprof.MemProfileRate ||
		(strings.TrimSpace(oldCfg.Pprof.Token) != "") != (strings.TrimSpace(newCfg.Pprof.Token) != "") {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
			logx.Bool("pprof.allow_insecure", newCfg.Pprof.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
