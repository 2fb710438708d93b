package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
)

// ── NewAppInfoService ──

func TestNewAppInfoService_EmptyVersion(t *testing.T) {
	svc, err := NewAppInfoService(config.App{AgentID: "agent-7"}, logger.Nop())

	assert.Nil(t, svc)
	assert.ErrorIs(t, err, ErrVersionIsNotSpecified)
}

// ── GetAppVersion ──

func TestGetAppVersion_ReturnsConfiguredVersion(t *testing.T) {
	for _, version := range []string{"1.0.0", "v1.2.3-beta+build.42", "N/A"} {
		t.Run(version, func(t *testing.T) {
			svc, err := NewAppInfoService(config.App{Version: version}, logger.Nop())
			require.NoError(t, err)

			assert.Equal(t, version, svc.GetAppVersion(context.Background()))
		})
	}
}

func TestGetAppVersion_IgnoresCancelledContext(t *testing.T) {
	svc, err := NewAppInfoService(config.App{Version: "2.0.1"}, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, "2.0.1", svc.GetAppVersion(ctx))
}
