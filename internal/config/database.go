package config

import (
	"fmt"
	"time"
)

// DatabaseConfig describes the run ledger database.
// Driver is "sqlite", "postgres" or "none" (ledger disabled).
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"` // sqlite file
	URL             string        `mapstructure:"url"`  // postgres connection string
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Enabled reports whether a run ledger should be opened.
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver != "" && c.Driver != "none"
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return fmt.Sprintf("%s?_busy_timeout=5000", c.Path)
}
