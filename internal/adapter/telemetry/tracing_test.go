package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "cropchain", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_Endpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "cropchain", "http://127.0.0.1:4318")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
