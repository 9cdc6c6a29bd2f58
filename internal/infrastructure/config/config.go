// Package config provides application configuration.
package config

import "time"

// AlertSource selects where the authoritative set of alerts comes from.
type AlertSource string

// Alert source values.
const (
	AlertSourceFiles    AlertSource = "Files"
	AlertSourceDatabase AlertSource = "Database"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	CDC      CDCConfig      `mapstructure:"cdc"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// AppConfig manages environment info for the daemon.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// IsProduction returns true if running in production.
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig manages the connection to the relational store holding
// alerts and incidents.
type DatabaseConfig struct {
	URL           string `mapstructure:"database_url" validate:"required"`
	MaxConnection int    `mapstructure:"database_max_connection" validate:"min=1"`
}

// AlertsConfig selects the alert source and, for Files mode, where the
// alert templates live on disk.
type AlertsConfig struct {
	Source AlertSource `mapstructure:"alerts_source" validate:"oneof=Files Database"`
	Path   string      `mapstructure:"alerts_path"`
}

// CDCConfig configures the change-data-capture websocket feed.
type CDCConfig struct {
	WSSDomain        string        `mapstructure:"wss_domain" validate:"required"`
	Adm              string        `mapstructure:"cdc_adm"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff" validate:"min=0"`
	MaxReconnects    int           `mapstructure:"max_reconnects" validate:"min=1"`
}

// SMTPConfig manages outbound mail for incident notifications.
type SMTPConfig struct {
	Host          string `mapstructure:"smtp_host" validate:"required"`
	Port          int    `mapstructure:"smtp_port" validate:"min=1,max=65535"`
	User          string `mapstructure:"smtp_user"`
	Password      string `mapstructure:"smtp_password"`
	TLS           bool   `mapstructure:"smtp_tls"`
	EmailSender   string `mapstructure:"smtp_email_sender" validate:"required,email"`
	EmailReceiver string `mapstructure:"smtp_email_receiver" validate:"required,email"`
	PoolSize      int    `mapstructure:"smtp_pool_size" validate:"min=1"`
}

// LoggingConfig manages the level and format of the logs.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the ambient health/metrics HTTP surface.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
