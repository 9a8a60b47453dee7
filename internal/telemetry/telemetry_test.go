package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := Init(ctx, "catalog-test", "", "test")
	require.NoError(t, err)
	assert.False(t, p.Exporting)
	assert.NotNil(t, p.TracerProvider)

	_, span := otel.Tracer("catalog-test").Start(ctx, "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(ctx))
}

func TestInitWithEndpoint(t *testing.T) {
	ctx := context.Background()
	// nothing listens there; init must still succeed
	p, err := Init(ctx, "catalog-test", "http://localhost:4318", "test")
	require.NoError(t, err)
	assert.True(t, p.Exporting)

	require.NoError(t, p.Shutdown(ctx))
}
