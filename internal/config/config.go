package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds the billing service configuration. Environment variables
// are parsed from the BILLING_ prefix, e.g. BILLING_HTTP_PORT.
type Config struct {
	// Build target selects the deployment flavor: local or cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver: sqlite | postgres
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/casebilling.db"`

	// DefaultBillableRate is applied to timer-produced entries when the
	// stop request does not carry an explicit rate.
	DefaultBillableRate string `envconfig:"DEFAULT_BILLABLE_RATE" default:"150.00"`

	// InvoiceDueDays sets the due date assigned when an invoice is sent.
	InvoiceDueDays int `envconfig:"INVOICE_DUE_DAYS" default:"30"`

	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires BILLING_POSTGRES_DSN")
	}
	if _, err := decimal.NewFromString(c.DefaultBillableRate); err != nil {
		return fmt.Errorf("invalid DEFAULT_BILLABLE_RATE %q: %w", c.DefaultBillableRate, err)
	}
	if c.InvoiceDueDays <= 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must be positive, got %d", c.InvoiceDueDays)
	}
	return nil
}

// New creates a Config by parsing BILLING_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("BILLING", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultRate returns the parsed default billable rate. ResolveDefaults
// guarantees the string parses.
func (c *Config) DefaultRate() decimal.Decimal {
	d, _ := decimal.NewFromString(c.DefaultBillableRate)
	return d
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
