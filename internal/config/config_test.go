package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  read_timeout: 5s
database:
  host: localhost
  name: sentiment
  user: app
  password: secret
  conn_max_lifetime: 10m
auth:
  jwt_secret: "0123456789abcdef0123"
workflow:
  webhook_url: http://workflow.local/webhook/scrape
  callback_secret: shh
logging:
  level: debug
  format: json
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "http://workflow.local/webhook/scrape", cfg.Workflow.WebhookURL)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("JWT_SECRET", "another-secret-that-is-long")
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "another-secret-that-is-long", cfg.Auth.JWTSecret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestParse_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse([]byte(`
database: {host: h, name: n, user: u}
auth: {jwt_secret: short}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidate_LoggingFormat(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "h", Name: "n", User: "u"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
		Logging:  LoggingConfig{Format: "xml"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Logging.Format = "TEXT"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sentiment", cfg.Database.Name)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
