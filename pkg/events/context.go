package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

type ctxKey int

const (
	ctxKeyEventSinks ctxKey = iota
)

// WithEventSinks attaches sinks to ctx on top of any already attached. A
// caller can watch a single exchange this way without touching the
// controller's own sink.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	combined := append([]EventSink{}, GetEventSinks(ctx)...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, ctxKeyEventSinks, combined)
}

func GetEventSinks(ctx context.Context) []EventSink {
	if ctx == nil {
		return nil
	}
	if sinks, ok := ctx.Value(ctxKeyEventSinks).([]EventSink); ok {
		return sinks
	}
	return nil
}

// PublishEventToContext publishes event to every sink attached to ctx.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		return
	}
	log.Trace().
		Str("event_type", string(event.Type())).
		Int("sink_count", len(sinks)).
		Msg("publishing to context sinks")
	for _, sink := range sinks {
		PublishBlind(sink, event)
	}
}
