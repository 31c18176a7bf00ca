package journal

import (
	"context"
	"time"
)

type contextKey struct{}

// ContextWithRecorder attaches recorder to ctx.
func ContextWithRecorder(ctx context.Context, recorder Recorder) context.Context {
	return context.WithValue(ctx, contextKey{}, recorder)
}

// RecorderFromContext returns the recorder attached to ctx, or nil.
func RecorderFromContext(ctx context.Context) Recorder {
	recorder, _ := ctx.Value(contextKey{}).(Recorder)
	return recorder
}

// Record writes an event to the recorder attached to ctx, if any.
// Recording never fails the caller.
func Record(ctx context.Context, action string, payload any) {
	recorder := RecorderFromContext(ctx)
	if recorder == nil {
		return
	}

	_ = recorder.Write(ctx, &Event{
		Timestamp: time.Now(),
		Action:    action,
		Payload:   payload,
	})
}
