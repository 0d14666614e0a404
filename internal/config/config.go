package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	LDAP         LDAPConfig         `mapstructure:"ldap"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Legalization LegalizationConfig `mapstructure:"legalization"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer"`
}

// LDAPConfig holds directory configuration
type LDAPConfig struct {
	Enabled      bool   `mapstructure:"enabled"` // false switches to the bypass stub
	URL          string `mapstructure:"url"`
	BindDN       string `mapstructure:"bind_dn"`
	BindPassword string `mapstructure:"bind_password"`
	BaseDN       string `mapstructure:"base_dn"`
	UserFilter   string `mapstructure:"user_filter"`
}

// SMTPConfig holds mail transport configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LegalizationConfig holds expense legalization configuration
type LegalizationConfig struct {
	GraceDays int    `mapstructure:"grace_days"`
	UploadDir string `mapstructure:"upload_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/visitas.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Auth defaults
	viper.SetDefault("auth.access_ttl", 15*time.Minute)
	viper.SetDefault("auth.refresh_ttl", 24*time.Hour)
	viper.SetDefault("auth.issuer", "gestion-visitas")

	// LDAP defaults
	viper.SetDefault("ldap.enabled", true)
	viper.SetDefault("ldap.user_filter", "(mail=%s)")

	// SMTP defaults
	viper.SetDefault("smtp.port", 587)

	// Legalization defaults
	viper.SetDefault("legalization.grace_days", 5)
	viper.SetDefault("legalization.upload_dir", "uploads")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("auth.access_secret", "AUTH_ACCESS_SECRET")
	viper.BindEnv("auth.refresh_secret", "AUTH_REFRESH_SECRET")
	viper.BindEnv("ldap.url", "LDAP_URL")
	viper.BindEnv("ldap.bind_dn", "LDAP_BIND_DN")
	viper.BindEnv("ldap.bind_password", "LDAP_BIND_PASSWORD")
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("auth.access_secret is required")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("auth.refresh_secret is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("auth.access_secret and auth.refresh_secret must differ")
	}

	if c.LDAP.Enabled {
		if c.LDAP.URL == "" {
			return fmt.Errorf("ldap.url is required when ldap is enabled")
		}
		if c.LDAP.BaseDN == "" {
			return fmt.Errorf("ldap.base_dn is required when ldap is enabled")
		}
	}

	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}

	return nil
}
