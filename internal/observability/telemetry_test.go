package observability

import (
	"context"
	"testing"

	"github.com/bippity/Invincible-Tiles/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTelemetry_Enabled(t *testing.T) {
	// экспортер подключается лениво, поэтому коллектор для старта не нужен
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:1")
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: true, ServiceName: "test"})
	require.NoError(t, err)
	_ = shutdown(context.Background())
}
