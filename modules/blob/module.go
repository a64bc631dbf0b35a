package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

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
	Objects storage.ObjectStore
	// Receipts remembers processed blobs. In-memory receipts are used when
	// nil, so a restarted host sees every blob again.
	Receipts     listener.Receipts
	PollInterval time.Duration
}

var (
	bytesType  = reflect.TypeFor[[]byte]()
	stringType = reflect.TypeFor[string]()
	readerType = reflect.TypeFor[io.Reader]()
	writerType = reflect.TypeFor[io.Writer]()
	eventType  = reflect.TypeFor[Event]()
	blobType   = reflect.TypeFor[Blob]()
	trigType   = reflect.TypeFor[BlobTrigger]()
)

// Register adds the blob tags, rules and converters to r.
func (m *Module) Register(r *registry.Registry) {
	if m.Objects == nil {
		panic("blob: module requires an object store")
	}
	if m.Receipts == nil {
		m.Receipts = &listener.MemReceipts{}
	}

	r.RegisterTagDecoder("blob", registry.DecoderFor[Blob]())
	r.RegisterTagDecoder("blob_trigger", registry.DecoderFor[BlobTrigger]())

	toReader := func(_ context.Context, src any, _ any) (any, error) {
		return io.Reader(bytes.NewReader(src.([]byte))), nil
	}
	r.Converters.Register(bytesType, readerType, blobType, toReader)
	r.Converters.Register(bytesType, readerType, trigType, toReader)

	blobs := binding.On[Blob](r.Rules).WithTemplate(func(b Blob) string { return b.Path })
	binding.Bind(blobs.When("Access is readwrite", func(b Blob) bool { return b.Access == AccessReadWrite }), "blob-inout", m.bindInOut)
	writable := blobs.When("Access is not read", func(b Blob) bool { return b.Access != AccessRead })
	binding.Bind(writable, "blob-writer", m.bindWriter)
	binding.BindToCollector(writable, "blob-output", m.openSink)
	binding.BindToInput(blobs.When("Access is not write", func(b Blob) bool { return b.Access != AccessWrite }), "blob-input", m.openInput)

	triggers := binding.On[BlobTrigger](r.Rules).WithTemplate(func(b BlobTrigger) string { return b.Path })
	binding.BindToTrigger(triggers, "blob-trigger", binding.Trigger[BlobTrigger]{
		Accepts: func(t reflect.Type, conv *converter.Registry) bool {
			if t == eventType {
				return true
			}
			_, ok := conv.Resolve(bytesType, t, BlobTrigger{})
			return ok
		},
		Contract: func(BlobTrigger, reflect.Type) []string { return []string{"BlobTrigger"} },
		Bind: func(ctx context.Context, tag BlobTrigger, tmpl *pathtemplate.Template, payload any, t reflect.Type) (*binding.TriggerData, error) {
			return m.bindTrigger(ctx, r.Converters, tag, tmpl, payload, t)
		},
		Listen: m.listen,
	})
}

// read returns the object's content, or nil when it does not exist.
func (m *Module) read(ctx context.Context, path string) ([]byte, error) {
	rc, err := m.Objects.Read(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (m *Module) openInput(ctx context.Context, _ Blob, bc *binding.Context) ([]byte, error) {
	data, err := m.read(ctx, bc.Path)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", bc.Path, err)
	}
	if data == nil {
		bc.Logger.Debug("Input blob not found, binding zero value.", "path", bc.Path)
	}
	return data, nil
}

func (m *Module) openSink(_ context.Context, _ Blob, bc *binding.Context) (binding.Sink[[]byte], error) {
	return &sink{objects: m.Objects, path: bc.Path}, nil
}

// sink concatenates everything added and writes the object on flush.
type sink struct {
	objects storage.ObjectStore
	path    string
	buf     bytes.Buffer
	written bool
}

func (s *sink) Add(_ context.Context, item []byte) error {
	s.buf.Write(item)
	s.written = true
	return nil
}

func (s *sink) Flush(ctx context.Context) error {
	if !s.written {
		return nil
	}
	return s.objects.Write(ctx, s.path, bytes.NewReader(s.buf.Bytes()))
}

func (m *Module) bindWriter(_ Blob, tmpl *pathtemplate.Template, req *binding.Request) (*binding.ParameterSpec, error) {
	if req.Type != writerType {
		return nil, nil
	}
	return &binding.ParameterSpec{
		Direction: binding.Out,
		Factory: binding.OpenWithPath(tmpl, func(_ context.Context, bc *binding.Context) (*binding.Value, error) {
			buf := &bytes.Buffer{}
			return &binding.Value{
				Arg: reflect.ValueOf(buf),
				Flush: func(ctx context.Context) error {
					return m.Objects.Write(ctx, bc.Path, bytes.NewReader(buf.Bytes()))
				},
				Status: func() string { return fmt.Sprintf("%d byte(s) written", buf.Len()) },
			}, nil
		}),
	}, nil
}

func (m *Module) bindInOut(_ Blob, tmpl *pathtemplate.Template, req *binding.Request) (*binding.ParameterSpec, error) {
	if req.Type != reflect.PointerTo(bytesType) && req.Type != reflect.PointerTo(stringType) {
		return nil, nil
	}
	elem := req.Type.Elem()
	return &binding.ParameterSpec{
		Direction: binding.InOut,
		Factory: binding.OpenWithPath(tmpl, func(ctx context.Context, bc *binding.Context) (*binding.Value, error) {
			data, err := m.read(ctx, bc.Path)
			if err != nil {
				return nil, fmt.Errorf("reading blob %s: %w", bc.Path, err)
			}
			ptr := reflect.New(elem)
			ptr.Elem().Set(reflect.ValueOf(data).Convert(elem))
			var size int
			return &binding.Value{
				Arg: ptr,
				Flush: func(ctx context.Context) error {
					out := ptr.Elem().Convert(bytesType).Bytes()
					size = len(out)
					return m.Objects.Write(ctx, bc.Path, bytes.NewReader(out))
				},
				Status: func() string { return fmt.Sprintf("%d byte(s) written", size) },
			}, nil
		}),
	}, nil
}

func (m *Module) bindTrigger(ctx context.Context, conv *converter.Registry, tag BlobTrigger, tmpl *pathtemplate.Template, payload any, t reflect.Type) (*binding.TriggerData, error) {
	var path string
	switch p := payload.(type) {
	case string:
		path = p
	case Event:
		path = p.Path
	case *Event:
		path = p.Path
	default:
		return nil, fmt.Errorf("unsupported blob trigger payload %T", payload)
	}

	fields, ok := tmpl.Match(path)
	if !ok {
		return nil, fmt.Errorf("blob path %q does not match %q", path, tmpl.String())
	}
	fields["BlobTrigger"] = path

	data, err := m.read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", path, err)
	}
	if data == nil {
		return nil, fmt.Errorf("blob %s: %w", path, storage.ErrNotFound)
	}

	var arg reflect.Value
	if t == eventType {
		arg = reflect.ValueOf(Event{Path: path, Size: int64(len(data))})
	} else {
		out, err := conv.Convert(ctx, data, t, tag)
		if err != nil {
			return nil, err
		}
		arg = binding.ValueOf(out, t)
	}
	return &binding.TriggerData{Path: fields, Value: &binding.Value{Arg: arg}}, nil
}

func (m *Module) listen(_ BlobTrigger, tmpl *pathtemplate.Template) binding.ListenFunc {
	return func(ctx context.Context, dispatch binding.Dispatch) error {
		poller := &listener.BlobPoller{
			Objects:  m.Objects,
			Receipts: m.Receipts,
			Template: tmpl,
			Interval: m.PollInterval,
		}
		ctxlog.FromContext(ctx).Debug("Blob listener started.", "template", tmpl.String())
		return poller.Run(ctx, func(ctx context.Context, path string) error {
			return dispatch(ctx, path)
		})
	}
}
