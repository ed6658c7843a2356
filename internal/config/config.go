package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Values that must never reach production as secrets.
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Log            LogConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Email          EmailConfig
	Telegram       TelegramConfig
	Panel          PanelConfig
	HTTPClient     HTTPClientConfig
	InternalSecret string
}

type ServerConfig struct {
	Port               string
	Mode               string
	RateLimitPerMinute int
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL         string
	Schema      string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type JWTConfig struct {
	SecretKey string
	AdminRole string
}

type EmailConfig struct {
	ResendAPIKey string
	FromName     string
	FromAddress  string
}

// From renders the fixed sender identity, e.g. "Store <noreply@store.id>".
func (e EmailConfig) From() string {
	if e.FromName == "" {
		return e.FromAddress
	}
	return fmt.Sprintf("%s <%s>", e.FromName, e.FromAddress)
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID string
	APIURL      string
}

// Configured reports whether admin chat notifications can be sent.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.AdminChatID != ""
}

// PanelConfig holds panel settings that are not credentials. The panel URL and
// API key are read per request from the settings row.
type PanelConfig struct {
	ServerNamePrefix string
}

type HTTPClientConfig struct {
	Timeout time.Duration
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetString("SERVER_PORT"),
			Mode:               v.GetString("GIN_MODE"),
			RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("DATABASE_URL"),
			Schema:      v.GetString("DB_SCHEMA"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  time.Duration(v.GetInt("PROVISION_LOCK_TTL_SEC")) * time.Second,
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("JWT_SECRET_KEY"),
			AdminRole: v.GetString("JWT_ADMIN_ROLE"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			FromName:     v.GetString("EMAIL_FROM_NAME"),
			FromAddress:  v.GetString("EMAIL_FROM_ADDRESS"),
		},
		Telegram: TelegramConfig{
			BotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
			AdminChatID: v.GetString("TELEGRAM_ADMIN_CHAT_ID"),
			APIURL:      strings.TrimRight(v.GetString("TELEGRAM_API_URL"), "/"),
		},
		Panel: PanelConfig{
			ServerNamePrefix: v.GetString("SERVER_NAME_PREFIX"),
		},
		HTTPClient: HTTPClientConfig{
			Timeout: time.Duration(v.GetInt("HTTP_CLIENT_TIMEOUT_SEC")) * time.Second,
		},
		InternalSecret: v.GetString("INTERNAL_SECRET"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROVISION_LOCK_TTL_SEC", 120)
	v.SetDefault("JWT_ADMIN_ROLE", "service_role")
	v.SetDefault("EMAIL_FROM_NAME", "Panel Store")
	v.SetDefault("EMAIL_FROM_ADDRESS", "noreply@example.com")
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("HTTP_CLIENT_TIMEOUT_SEC", 30)
}

// Validate rejects configurations that are unsafe or cannot serve requests.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}

	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if c.Server.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("PROVISION_LOCK_TTL_SEC must be > 0")
	}

	return nil
}
