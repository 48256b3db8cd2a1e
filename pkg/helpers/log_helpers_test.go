package helpers

import (
	"bytes"
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCorrelationIDContext(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))

	id := NewCorrelationID()
	assert.NotEmpty(t, id)
	assert.NotEqual(t, id, NewCorrelationID())

	ctx := ContextWithCorrelationID(context.Background(), id)
	assert.Equal(t, id, CorrelationIDFromContext(ctx))
}

func TestWatermillAdapterWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)

	w := NewWatermill(logger).With(watermill.LogFields{"topic": "sessions"})
	w.Info("subscribed", watermill.LogFields{"handler": "ui"})

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"topic":"sessions"`)
	assert.Contains(t, out, `"handler":"ui"`)
	assert.Contains(t, out, "subscribed")
}
