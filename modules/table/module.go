// Package table binds function parameters to rows of a keyed table. Rows
// are stored as JSON unless the parameter is a byte slice.
package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/pathtemplate"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/storage"
)

// Table binds a parameter to one row. Every field is a template filled from
// binding data; the fields are parsed separately, so they may share
// placeholders.
type Table struct {
	Name         string `hcl:"name"`
	PartitionKey string `hcl:"partition_key"`
	RowKey       string `hcl:"row_key"`
}

func (Table) BindingName() string { return "table" }

// Module implements the registry.Module interface for this package.
type Module struct {
	Table storage.Table
}

var bytesType = reflect.TypeFor[[]byte]()

// Register adds the table tag and rules to r.
func (m *Module) Register(r *registry.Registry) {
	if m.Table == nil {
		panic("table: module requires a table store")
	}
	r.RegisterTagDecoder("table", registry.DecoderFor[Table]())

	rows := binding.On[Table](r.Rules).
		WithValidator(func(tag Table, _ reflect.Type) error {
			if tag.Name == "" || tag.PartitionKey == "" || tag.RowKey == "" {
				return errors.New("table binding requires name, partition_key and row_key")
			}
			return nil
		})

	binding.Bind(rows, "table-inout", m.bindInOut)
	binding.Bind(rows, "table-input", m.bindInput)
}

// keys holds the parsed templates of one tag.
type keys struct {
	name, partition, row *pathtemplate.Template
}

func parseKeys(tag Table) (*keys, error) {
	var k keys
	var err error
	if k.name, err = pathtemplate.Parse(tag.Name); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if k.partition, err = pathtemplate.Parse(tag.PartitionKey); err != nil {
		return nil, fmt.Errorf("partition_key: %w", err)
	}
	if k.row, err = pathtemplate.Parse(tag.RowKey); err != nil {
		return nil, fmt.Errorf("row_key: %w", err)
	}
	return &k, nil
}

// names returns the placeholders of all three keys. A name may appear in
// more than one key.
func (k *keys) names() []string {
	var out []string
	for _, t := range []*pathtemplate.Template{k.name, k.partition, k.row} {
		for _, n := range t.ParameterNames() {
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	return out
}

func (k *keys) apply(data binding.Data) (name, partition, row string, err error) {
	if name, err = k.name.Apply(data); err != nil {
		return
	}
	if partition, err = k.partition.Apply(data); err != nil {
		return
	}
	row, err = k.row.Apply(data)
	return
}

func rowType(t reflect.Type) bool {
	return t == bytesType || t.Kind() == reflect.Struct || t.Kind() == reflect.Map
}

// read fills dst from the stored row and reports whether the row exists.
func (m *Module) read(ctx context.Context, k *keys, data binding.Data, dst reflect.Value) (bool, error) {
	name, partition, row, err := k.apply(data)
	if err != nil {
		return false, err
	}
	raw, err := m.Table.Read(ctx, name, partition, row)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if dst.Type() == bytesType {
		dst.SetBytes(raw)
		return true, nil
	}
	if err := json.Unmarshal(raw, dst.Addr().Interface()); err != nil {
		return false, fmt.Errorf("decoding row %s/%s/%s: %w", name, partition, row, err)
	}
	return true, nil
}

func (m *Module) bindInput(tag Table, _ *pathtemplate.Template, req *binding.Request) (*binding.ParameterSpec, error) {
	if !rowType(req.Type) {
		return nil, nil
	}
	k, err := parseKeys(tag)
	if err != nil {
		return nil, err
	}
	typ := req.Type
	return &binding.ParameterSpec{
		Direction: binding.In,
		DataNames: k.names(),
		Factory: func(ctx context.Context, bc *binding.Context) (*binding.Value, error) {
			v := reflect.New(typ).Elem()
			found, err := m.read(ctx, k, bc.Data, v)
			if err != nil {
				return nil, err
			}
			if !found {
				bc.Logger.Debug("Table row not found, binding zero value.")
			}
			return &binding.Value{Arg: v}, nil
		},
	}, nil
}

func (m *Module) bindInOut(tag Table, _ *pathtemplate.Template, req *binding.Request) (*binding.ParameterSpec, error) {
	if req.Type.Kind() != reflect.Pointer || !rowType(req.Type.Elem()) {
		return nil, nil
	}
	k, err := parseKeys(tag)
	if err != nil {
		return nil, err
	}
	elem := req.Type.Elem()
	return &binding.ParameterSpec{
		Direction: binding.InOut,
		DataNames: k.names(),
		Factory: func(ctx context.Context, bc *binding.Context) (*binding.Value, error) {
			ptr := reflect.New(elem)
			found, err := m.read(ctx, k, bc.Data, ptr.Elem())
			if err != nil {
				return nil, err
			}
			status := "not written"
			return &binding.Value{
				Arg: ptr,
				Flush: func(ctx context.Context) error {
					name, partition, row, err := k.apply(bc.Data)
					if err != nil {
						return err
					}
					raw, err := encodeRow(ptr.Elem())
					if err != nil {
						return err
					}
					if err := m.Table.Write(ctx, name, partition, row, raw); err != nil {
						return err
					}
					status = "created"
					if found {
						status = "updated"
					}
					return nil
				},
				Status: func() string { return status },
			}, nil
		},
	}, nil
}

func encodeRow(v reflect.Value) ([]byte, error) {
	if v.Type() == bytesType {
		return v.Bytes(), nil
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	return b, nil
}
