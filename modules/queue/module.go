package queue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/converter"
	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/listener"
	"github.com/vk/jobhost/internal/pathtemplate"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/storage"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Channel storage.Channel
	// MaxDequeueCount is how often a failing message is retried before it
	// moves to the poison queue.
	MaxDequeueCount int
}

var (
	bytesType      = reflect.TypeFor[[]byte]()
	stringType     = reflect.TypeFor[string]()
	messageType    = reflect.TypeFor[storage.Message]()
	messagePtrType = reflect.TypeFor[*storage.Message]()
)

// Register adds the queue tags, rules and converters to r.
func (m *Module) Register(r *registry.Registry) {
	if m.Channel == nil {
		panic("queue: module requires a channel")
	}

	r.RegisterTagDecoder("queue", registry.DecoderFor[Queue]())
	r.RegisterTagDecoder("queue_trigger", registry.DecoderFor[QueueTrigger]())
	r.Converters.RegisterOpen(converter.Any(), converter.Exact(bytesType), reflect.TypeFor[Queue](), encodeJSON)

	out := binding.On[Queue](r.Rules).WithTemplate(func(q Queue) string { return q.Name })
	binding.BindToCollector(out, "queue-output", func(_ context.Context, _ Queue, bc *binding.Context) (binding.Sink[[]byte], error) {
		return &sink{ch: m.Channel, name: bc.Path}, nil
	})

	trig := binding.On[QueueTrigger](r.Rules).WithValidator(func(tag QueueTrigger, _ reflect.Type) error {
		if tag.Name == "" {
			return errors.New("queue trigger requires a queue name")
		}
		t, err := pathtemplate.Parse(tag.Name)
		if err != nil {
			return err
		}
		if !t.IsLiteral() {
			return fmt.Errorf("queue trigger name %q must not contain placeholders", tag.Name)
		}
		return nil
	})
	binding.BindToTrigger(trig, "queue-trigger", binding.Trigger[QueueTrigger]{
		Accepts: accepts,
		Contract: func(_ QueueTrigger, t reflect.Type) []string {
			return append([]string{"QueueTrigger", "Id", "DequeueCount"}, jsonFieldNames(t)...)
		},
		Bind:   bindTrigger,
		Listen: m.listen,
	})
}

func accepts(t reflect.Type, _ *converter.Registry) bool {
	switch t {
	case bytesType, stringType, messageType, messagePtrType:
		return true
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return true
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	}
	return false
}

func toMessage(payload any) (storage.Message, error) {
	switch p := payload.(type) {
	case storage.Message:
		return p, nil
	case *storage.Message:
		return *p, nil
	case []byte:
		return storage.Message{ID: uuid.Must(uuid.NewV7()).String(), Body: p, DequeueCount: 1}, nil
	case string:
		return storage.Message{ID: uuid.Must(uuid.NewV7()).String(), Body: []byte(p), DequeueCount: 1}, nil
	}
	return storage.Message{}, fmt.Errorf("unsupported queue trigger payload %T", payload)
}

func bindTrigger(_ context.Context, tag QueueTrigger, _ *pathtemplate.Template, payload any, t reflect.Type) (*binding.TriggerData, error) {
	msg, err := toMessage(payload)
	if err != nil {
		return nil, err
	}

	fields := scalarFields(msg.Body)
	if fields == nil {
		fields = make(map[string]string, 3)
	}
	fields["QueueTrigger"] = string(msg.Body)
	fields["Id"] = msg.ID
	fields["DequeueCount"] = strconv.Itoa(msg.DequeueCount)

	var arg reflect.Value
	switch t {
	case bytesType:
		arg = reflect.ValueOf(msg.Body)
	case stringType:
		arg = reflect.ValueOf(string(msg.Body))
	case messageType:
		arg = reflect.ValueOf(msg)
	case messagePtrType:
		arg = reflect.ValueOf(&msg)
	default:
		arg, err = decodeJSON(msg.Body, t)
		if err != nil {
			return nil, err
		}
	}
	return &binding.TriggerData{Fields: fields, Value: &binding.Value{Arg: arg}}, nil
}

func (m *Module) listen(tag QueueTrigger, _ *pathtemplate.Template) binding.ListenFunc {
	max := tag.MaxDequeueCount
	if max <= 0 {
		max = m.MaxDequeueCount
	}
	return func(ctx context.Context, dispatch binding.Dispatch) error {
		recv := &listener.QueueReceiver{Channel: m.Channel, Name: tag.Name, MaxDequeueCount: max}
		ctxlog.FromContext(ctx).Debug("Queue listener started.", "queue", tag.Name)
		return recv.Run(ctx, func(ctx context.Context, msg *storage.Message) error {
			return dispatch(ctx, *msg)
		})
	}
}

// sink holds messages until flush.
type sink struct {
	ch      storage.Channel
	name    string
	pending [][]byte
}

func (s *sink) Add(_ context.Context, body []byte) error {
	s.pending = append(s.pending, body)
	return nil
}

func (s *sink) Flush(ctx context.Context) error {
	var errs []error
	for _, body := range s.pending {
		if err := s.ch.Send(ctx, s.name, storage.Message{Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("sending to %s: %w", s.name, err))
		}
	}
	s.pending = nil
	return errors.Join(errs...)
}
