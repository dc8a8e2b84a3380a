package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "spares")
	t.Setenv("DB_NAME", "spares")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 25, cfg.DB.MaxOpenConns)
		assert.Equal(t, 4, cfg.Worker.ExportWorkers)
		assert.Equal(t, 5*time.Second, cfg.Worker.ExportPollInterval)
		assert.Equal(t, 20, cfg.Exchange.RecentJobsLimit)
		assert.False(t, cfg.Exchange.XMLOrderItems)
		assert.False(t, cfg.S3.Enabled())
		assert.Equal(t, "test-secret", cfg.Exchange.FileLinkSecret)
		assert.Equal(t, []string{"localhost:3000", "127.0.0.1:3000"}, cfg.CORSHosts)
	})

	t.Run("reads overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXPORT_WORKERS", "2")
		t.Setenv("EXPORT_WAIT_TIMEOUT", "3s")
		t.Setenv("EXCHANGE_XML_ORDER_ITEMS", "true")
		t.Setenv("S3_BUCKET", "exports")
		t.Setenv("AWS_ACCESS_KEY_ID", "key")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
		t.Setenv("PUBLIC_BASE_URL", "https://parts.example.com/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Worker.ExportWorkers)
		assert.Equal(t, 3*time.Second, cfg.Worker.ExportWaitTimeout)
		assert.True(t, cfg.Exchange.XMLOrderItems)
		assert.True(t, cfg.S3.Enabled())
		assert.Equal(t, "https://parts.example.com", cfg.PublicBaseURL)
	})

	t.Run("rejects incomplete database settings", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_HOST", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXPORT_STALE_AFTER", "soon")

		_, err := Load()
		assert.ErrorContains(t, err, "EXPORT_STALE_AFTER")
	})

	for _, key := range []string{"EXPORT_POLL_INTERVAL", "EXPORT_WAIT_TIMEOUT", "STALE_CHECK_INTERVAL"} {
		t.Run("rejects zero "+key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "0s")

			_, err := Load()
			assert.ErrorContains(t, err, key+" must be greater than zero")
		})
	}

	t.Run("rejects empty worker pool", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXPORT_WORKERS", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
