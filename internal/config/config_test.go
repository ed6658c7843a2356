package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("TELEGRAM_API_URL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 120*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "service_role", cfg.JWT.AdminRole)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100200")
	t.Setenv("TELEGRAM_API_URL", "http://tg.local/")
	t.Setenv("PROVISION_LOCK_TTL_SEC", "30")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Telegram.Configured())
	assert.Equal(t, "http://tg.local", cfg.Telegram.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:         ServerConfig{RateLimitPerMinute: 10},
			Database:       DatabaseConfig{URL: "postgres://localhost/db"},
			Redis:          RedisConfig{LockTTL: time.Minute},
			JWT:            JWTConfig{SecretKey: strings.Repeat("k", 32)},
			InternalSecret: strings.Repeat("s", 32),
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Database.URL = ""
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = valid()
	cfg.JWT.SecretKey = "your-secret-key-change-in-production"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET_KEY")

	cfg = valid()
	cfg.InternalSecret = "short"
	assert.ErrorContains(t, cfg.Validate(), "INTERNAL_SECRET")
}

func TestEmailFrom(t *testing.T) {
	assert.Equal(t, "Store <a@b.com>", EmailConfig{FromName: "Store", FromAddress: "a@b.com"}.From())
	assert.Equal(t, "a@b.com", EmailConfig{FromAddress: "a@b.com"}.From())
}
