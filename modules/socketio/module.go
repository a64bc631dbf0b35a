// Package socketio binds output parameters to events emitted over a
// socket.io connection.
package socketio

import (
	"context"
	"fmt"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/registry"
)

// SocketIO sends every item added to the parameter as one Event. Event is a
// template filled from binding data.
type SocketIO struct {
	Event string `hcl:"event"`
}

func (SocketIO) BindingName() string { return "socketio" }

// Emitter sends an event with one payload.
type Emitter interface {
	Emit(event string, data any) error
}

// Module implements the registry.Module interface for this package.
type Module struct {
	Emitter Emitter
}

// Register adds the socketio tag and rule to r.
func (m *Module) Register(r *registry.Registry) {
	if m.Emitter == nil {
		panic("socketio: module requires an emitter")
	}
	r.RegisterTagDecoder("socketio", registry.DecoderFor[SocketIO]())

	events := binding.On[SocketIO](r.Rules).WithTemplate(func(s SocketIO) string { return s.Event })
	binding.BindToCollector(events, "socketio-output", func(_ context.Context, _ SocketIO, bc *binding.Context) (binding.Sink[any], error) {
		return &sink{emitter: m.Emitter, event: bc.Path}, nil
	})
}

// sink emits buffered items on flush, in the order they were added.
type sink struct {
	emitter Emitter
	event   string
	pending []any
}

func (s *sink) Add(_ context.Context, item any) error {
	s.pending = append(s.pending, item)
	return nil
}

func (s *sink) Flush(ctx context.Context) error {
	for i, item := range s.pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.emitter.Emit(s.event, item); err != nil {
			return fmt.Errorf("emitting %s (%d of %d): %w", s.event, i+1, len(s.pending), err)
		}
	}
	s.pending = nil
	return nil
}
