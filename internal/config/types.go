package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage is required: every subsystem reads and writes through it.
	Storage StorageConfig `json:"storage"`

	// Reminder controls the scheduled notification sweep.
	Reminder ReminderConfig `json:"reminder"`

	// Mail configures the SMTP transport reminders are delivered over.
	Mail MailConfig `json:"mail"`

	Pprof PprofConfig `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./quiethours.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ReminderConfig controls the reminder sweep service.
//
// All durations are Go duration strings (e.g. "30s", "10m").
//
// Defaults (when fields are omitted/zero):
//   - schedule: "* * * * *" (every minute)
//   - lead: "10m"
//   - window: "1m"
//   - workers: 4
//   - send_timeout: "30s"
//   - rate_per_sec: 3
type ReminderConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a cron expression for the sweep trigger.
	Schedule string `json:"schedule,omitempty"`

	// Lead is how far before a block's start its reminder goes out.
	Lead string `json:"lead,omitempty"`

	// Window is the width of the selection band each sweep covers.
	// It should match the sweep cadence or blocks fall through the gap.
	Window string `json:"window,omitempty"`

	Workers     int    `json:"workers,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// MailConfig configures the SMTP sender. Password is never logged.
type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
	// Timeout is a Go duration string bounding each delivery attempt.
	Timeout string `json:"timeout,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MemProfileRate       int `json:"mem_profile_rate,omitempty"`
}
