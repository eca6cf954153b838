package storage

import (
	"errors"
	"strings"

	logx "quiethours/pkg/logx"
)

// Open initializes the configured store. The interval store is mandatory:
// an empty driver means sqlite, not disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
