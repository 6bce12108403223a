package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "aarogya", zerolog.Nop())
	require.NoError(t, err)
	shutdown(context.Background())
}

func TestInitTracerWithEndpoint(t *testing.T) {
	// the gRPC exporter connects lazily, so no collector is needed here
	shutdown, err := InitTracer(context.Background(), "127.0.0.1:4317", "aarogya", zerolog.Nop())
	require.NoError(t, err)
	shutdown(context.Background())
}
