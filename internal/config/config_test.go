package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "RENTAL_PERIOD", "REQUEST_TIMEOUT", "SHUTDOWN_TIMEOUT", "WRITE_RATE_LIMIT", "WRITE_RATE_BURST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 7*24*time.Hour, cfg.RentalPeriod)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50.0, cfg.WriteRateLimit)
	assert.Equal(t, 100, cfg.WriteRateBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", StoreMemory)
	t.Setenv("RENTAL_PERIOD", "72h")
	t.Setenv("WRITE_RATE_LIMIT", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 72*time.Hour, cfg.RentalPeriod)
	assert.Zero(t, cfg.WriteRateLimit)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown store":     {"STORE", "sqlite"},
		"bad duration":      {"RENTAL_PERIOD", "a week"},
		"negative period":   {"RENTAL_PERIOD", "-1h"},
		"bad burst":         {"WRITE_RATE_BURST", "lots"},
		"negative limit":    {"WRITE_RATE_LIMIT", "-2"},
		"bad shutdown wait": {"SHUTDOWN_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDrill(t *testing.T) {
	t.Setenv("VIDEOSTORE_URL", "http://store:8080")
	t.Setenv("DRILL_RACERS", "4")

	cfg, err := LoadDrill()
	require.NoError(t, err)
	assert.Equal(t, "http://store:8080", cfg.TargetURL)
	assert.Equal(t, 4, cfg.Racers)

	t.Setenv("DRILL_RACERS", "1")
	_, err = LoadDrill()
	assert.Error(t, err)
}
