package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	tracing "sfincsrun/pkg/observability"
)

func TestInit_Disabled(t *testing.T) {
	p, err := tracing.Init(context.Background(), tracing.Config{ServiceName: "sfincsrun"})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSpanHelpers_NoProvider(t *testing.T) {
	ctx, span := tracing.StartSpan(context.Background(), "sfincs.run", attribute.String("backend", "docker"))
	defer span.End()

	tracing.AddEvent(ctx, "running")
	tracing.SetAttributes(ctx, attribute.Int("exit_code", 0))
	tracing.SetError(ctx, nil)
	tracing.SetError(ctx, errors.New("boom"))
	assert.Empty(t, tracing.TraceID(ctx))
}
