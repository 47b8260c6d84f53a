package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.SeedTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllow)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("SEED_TIMEOUT_SEC", "7")
	t.Setenv("CORS_ALLOW", "https://a.example, https://b.example ,")

	cfg := LoadConfig()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 7*time.Second, cfg.SeedTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllow)
}
