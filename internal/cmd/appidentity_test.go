package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/appid"
)

func TestAppIdentityMatchesBinary(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, "adpilot", identity.BinaryName)
	assert.Equal(t, "ADPILOT_", identity.EnvPrefix)
	assert.Equal(t, "adpilot", identity.ConfigName)
	assert.NotEmpty(t, identity.Vendor)
	assert.NotEmpty(t, identity.TelemetryNamespace())
}
