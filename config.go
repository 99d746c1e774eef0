package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	SecureCookies  bool     `mapstructure:"secure_cookies"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN   string `mapstructure:"dsn"`
	Debug bool   `mapstructure:"debug"`
}

type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // "sql" | "sheets"
	SeedFile string `mapstructure:"seed_file"`
}

type SheetsConfig struct {
	ProjectID     string `mapstructure:"project_id"`
	ClientEmail   string `mapstructure:"client_email"`
	PrivateKey    string `mapstructure:"private_key"`
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	Range         string `mapstructure:"range"`
}

type AuthConfig struct {
	Secret             string        `mapstructure:"secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	AdminEmails        []string      `mapstructure:"admin_emails"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string        `mapstructure:"google_redirect_url"`
	LoginRedirect      string        `mapstructure:"login_redirect"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
	File   string `mapstructure:"file"`
}

const (
	BackendSQL    = "sql"
	BackendSheets = "sheets"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.dsn", "quests.db")
	v.SetDefault("database.debug", false)

	v.SetDefault("store.backend", BackendSQL)
	v.SetDefault("store.seed_file", "data/quests.json")

	v.SetDefault("sheets.project_id", "")
	v.SetDefault("sheets.client_email", "")
	v.SetDefault("sheets.private_key", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "Quests!A1:D")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.admin_emails", []string{})
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.google_client_secret", "")
	v.SetDefault("auth.google_redirect_url", "http://localhost:8080/api/v1/auth/google/callback")
	v.SetDefault("auth.login_redirect", "/")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// LoadConfig reads config.toml (or path, when given), then applies
// QUESTDRAW_* environment overrides. A missing default config file is fine.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUESTDRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional names used by hosting platforms
	_ = v.BindEnv("server.port", "QUESTDRAW_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.dsn", "QUESTDRAW_DATABASE_DSN", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQL:
	case BackendSheets:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("config: sheets.spreadsheet_id is required for the sheets backend")
		}
		if c.Sheets.Range == "" {
			return fmt.Errorf("config: sheets.range is required for the sheets backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q (want %q or %q)", c.Store.Backend, BackendSQL, BackendSheets)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: auth.session_ttl must be positive")
	}
	return nil
}

func (c SheetsConfig) Credentials() SheetsCredentials {
	return SheetsCredentials{
		ProjectID:   c.ProjectID,
		ClientEmail: c.ClientEmail,
		PrivateKey:  c.PrivateKey,
	}
}
