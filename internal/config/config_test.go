package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
database:
  driver: sqlite
  path: /tmp/game.db
auth:
  jwt_secret: s3cret
  catalog_admins: [root, ops]
game:
  mining_reward: 250
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/game.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"root", "ops"}, cfg.Auth.CatalogAdmins)
	assert.Equal(t, int64(250), cfg.Game.MiningReward)

	// untouched keys keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(60), cfg.Game.SellPercent)
	assert.Equal(t, int64(10000), cfg.Game.StartingMoney)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
auth:
  jwt_secret: from-file
`)
	t.Setenv("ITEMSIM_AUTH_JWT_SECRET", "from-env")
	t.Setenv("ITEMSIM_REDIS_HOST", "cache.internal")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "x"
	require.NoError(t, cfg.Validate())

	cfg.Game.SellPercent = 120
	assert.Error(t, cfg.Validate())

	cfg.Game.SellPercent = 60
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())
}
