package events

import "context"

// Sink consumes events one at a time, in emission order. Implementations
// must honor ctx deadlines; a slow sink delays later sinks but never the
// emitter.
type Sink interface {
	Notify(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// scheduler stays agnostic about how events are buffered or delivered.
type Emitter interface {
	Emit(evt Event)
}

// ChannelSink forwards events into a caller-owned channel, dropping when the
// receiver falls behind. Useful for tests and API streaming.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink builds a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{C: make(chan Event, buffer)}
}

// Notify implements Sink.
func (s *ChannelSink) Notify(_ context.Context, evt Event) error {
	select {
	case s.C <- evt:
	default:
	}
	return nil
}

// Close implements Sink.
func (s *ChannelSink) Close(context.Context) error {
	close(s.C)
	return nil
}
