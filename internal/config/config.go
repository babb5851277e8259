// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Vault    VaultConfig    `mapstructure:"vault" yaml:"vault"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser process.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// PortalConfig describes the target shipment portal and the engine's timing
// behavior against it. The selectors themselves live with the engine; only
// entry URLs and waits are configuration.
type PortalConfig struct {
	AuthURL     string `mapstructure:"auth_url" yaml:"auth_url"`
	LoginHost   string `mapstructure:"login_host" yaml:"login_host"`
	OverviewURL string `mapstructure:"overview_url" yaml:"overview_url"`
	TrackingURL string `mapstructure:"tracking_url" yaml:"tracking_url"`

	// Bounded waits. ElementTimeout is the per-strategy budget of a selector
	// cascade; RedirectTimeout bounds the identity-provider redirect.
	ElementTimeout  time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	RedirectTimeout time.Duration `mapstructure:"redirect_timeout" yaml:"redirect_timeout"`

	// Settle delays for client-side rendering. The portal exposes no reliable
	// "ready" signal, so fixed waits are the contract.
	SettleShort   time.Duration `mapstructure:"settle_short" yaml:"settle_short"`
	SettlePage    time.Duration `mapstructure:"settle_page" yaml:"settle_page"`
	SettleResults time.Duration `mapstructure:"settle_results" yaml:"settle_results"`

	// OverdueAfter is the staleness threshold for the derived overdue flag.
	OverdueAfter time.Duration `mapstructure:"overdue_after" yaml:"overdue_after"`

	// Sealed credentials, produced by `parceltrace credentials seal`.
	UsernameSealed string `mapstructure:"username_sealed" yaml:"username_sealed"`
	PasswordSealed string `mapstructure:"password_sealed" yaml:"password_sealed"`
}

// DatabaseConfig holds the database connection details. Persistence is
// optional; with an empty URL extracted shipments are only printed.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// VaultConfig tunes the credential encryption parameters.
type VaultConfig struct {
	Iterations int `mapstructure:"iterations" yaml:"iterations"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "parceltrace")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})

	// -- Portal (GLS Austria) --
	v.SetDefault("portal.auth_url", "https://gls-group.eu/authenticate/?locale=de-AT")
	v.SetDefault("portal.login_host", "auth.dc.gls-group.eu")
	v.SetDefault("portal.overview_url", "https://gls-group.eu/app/service/closed/page/AT/de/witt004#/")
	v.SetDefault("portal.tracking_url", "https://gls-group.eu/AT/de/tracking")
	v.SetDefault("portal.element_timeout", "200ms")
	v.SetDefault("portal.redirect_timeout", "10s")
	v.SetDefault("portal.settle_short", "1s")
	v.SetDefault("portal.settle_page", "5s")
	v.SetDefault("portal.settle_results", "5s")
	v.SetDefault("portal.overdue_after", "168h")

	// -- Vault --
	v.SetDefault("vault.iterations", 10000)
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Portal.AuthURL == "" {
		return fmt.Errorf("portal.auth_url is a required configuration field")
	}
	if c.Portal.LoginHost == "" {
		return fmt.Errorf("portal.login_host is a required configuration field")
	}
	if c.Portal.ElementTimeout <= 0 {
		return fmt.Errorf("portal.element_timeout must be a positive duration")
	}
	if c.Portal.RedirectTimeout <= 0 {
		return fmt.Errorf("portal.redirect_timeout must be a positive duration")
	}
	if c.Portal.OverdueAfter <= 0 {
		return fmt.Errorf("portal.overdue_after must be a positive duration")
	}
	if c.Vault.Iterations <= 0 {
		return fmt.Errorf("vault.iterations must be a positive integer")
	}
	return nil
}
