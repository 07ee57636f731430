package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.True(t, cfg.SeedDemo)
	assert.True(t, cfg.AllowAllOrigins())
}

func TestLoadFromEnvAndDotEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SCHOOL_NAME=Bright Minds\nREDIS_DB=3\nPORT=7070\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SCHOOL_NAME")
		os.Unsetenv("REDIS_DB")
	})

	cfg := Load(envFile)
	assert.Equal(t, "9090", cfg.Port, "real environment wins over .env")
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.False(t, cfg.AllowAllOrigins())
	assert.Equal(t, "Bright Minds", cfg.SchoolName)
	assert.Equal(t, 3, cfg.RedisDB)
}
