// Package nameresolver expands %setting% tokens in binding declarations from
// app settings and the process environment.
package nameresolver

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver looks up a setting by name.
type Resolver interface {
	Lookup(name string) (string, bool)
}

// Settings resolves names from a fixed map first and the environment second.
type Settings struct {
	values map[string]string
	env    func(string) (string, bool)
}

// New returns Settings backed by values and os.LookupEnv.
func New(values map[string]string) *Settings {
	if values == nil {
		values = map[string]string{}
	}
	return &Settings{values: values, env: os.LookupEnv}
}

// Load reads a flat YAML mapping of setting names to values. An empty path
// yields settings backed by the environment only.
func Load(path string) (*Settings, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return New(values), nil
}

// Lookup implements Resolver.
func (s *Settings) Lookup(name string) (string, bool) {
	if v, ok := s.values[name]; ok {
		return v, true
	}
	if s.env != nil {
		return s.env(name)
	}
	return "", false
}

// UnknownSettingError reports a %name% token with no value.
type UnknownSettingError struct {
	Name string
}

func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("unknown setting %%%s%%", e.Name)
}

// Expand replaces every %name% token in s. "%%" is a literal percent sign.
func Expand(s string, r Resolver) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	var sb strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		sb.WriteString(s[:start])
		rest := s[start+1:]
		end := strings.IndexByte(rest, '%')
		if end < 0 {
			return "", fmt.Errorf("unterminated setting reference in %q", s)
		}
		name := rest[:end]
		if name == "" {
			sb.WriteByte('%')
		} else {
			v, ok := r.Lookup(name)
			if !ok {
				return "", &UnknownSettingError{Name: name}
			}
			sb.WriteString(v)
		}
		s = rest[end+1:]
	}
}

// ExpandFields returns a copy of the struct held in v with every
// exported string field expanded. Non-struct values are returned as is.
func ExpandFields[T any](v T, r Resolver) (T, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return v, nil
	}

	out := reflect.New(rv.Type()).Elem()
	out.Set(rv)
	for i := range out.NumField() {
		f := out.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() {
			continue
		}
		expanded, err := Expand(f.String(), r)
		if err != nil {
			return v, fmt.Errorf("field %s: %w", rv.Type().Field(i).Name, err)
		}
		f.SetString(expanded)
	}
	return out.Interface().(T), nil
}
