package hostconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/jobhost/internal/ctxlog"
)

// fileRoot decodes the top-level attributes of any file. Function blocks
// stay in Remain so their header ranges survive decoding.
type fileRoot struct {
	LogLevel        *string        `hcl:"log_level,optional"`
	LogFormat       *string        `hcl:"log_format,optional"`
	Workers         *int           `hcl:"workers,optional"`
	PollInterval    *string        `hcl:"poll_interval,optional"`
	FunctionTimeout *string        `hcl:"function_timeout,optional"`
	MaxDequeueCount *int           `hcl:"max_dequeue_count,optional"`
	SettingsFile    *string        `hcl:"settings_file,optional"`
	Storage         *storageBlock  `hcl:"storage,block"`
	SocketIO        *socketioBlock `hcl:"socketio,block"`
	Remain          hcl.Body       `hcl:",remain"`
}

type storageBlock struct {
	Objects         *string `hcl:"objects,optional"`
	Database        *string `hcl:"database,optional"`
	Channel         *string `hcl:"channel,optional"`
	ChannelCapacity *int    `hcl:"channel_capacity,optional"`
}

type socketioBlock struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

type functionBody struct {
	Handler     string            `hcl:"handler"`
	Description string            `hcl:"description,optional"`
	InvokeOnly  bool              `hcl:"invoke_only,optional"`
	Timeout     string            `hcl:"timeout,optional"`
	Params      []*parameterBlock `hcl:"parameter,block"`
}

type parameterBlock struct {
	Name    string   `hcl:"name,label"`
	Binding string   `hcl:"binding,optional"`
	Remain  hcl.Body `hcl:",remain"`
}

var functionSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "function", LabelNames: []string{"name"}}},
}

// Load reads every .hcl file under paths, in order, on top of Defaults.
// Later files override settings of earlier ones.
func Load(ctx context.Context, paths ...string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	cfg := Defaults()
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := cfg.merge(hclFile.Body); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "functions", len(cfg.Functions))
	return cfg, nil
}

// Parse decodes a single file's contents on top of Defaults.
func Parse(src []byte, filename string) (*Config, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	cfg := Defaults()
	if err := cfg.merge(hclFile.Body); err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) merge(body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return diags
	}

	setIf(&c.LogLevel, root.LogLevel)
	setIf(&c.LogFormat, root.LogFormat)
	setIf(&c.Workers, root.Workers)
	setIf(&c.MaxDequeueCount, root.MaxDequeueCount)
	setIf(&c.SettingsFile, root.SettingsFile)
	if err := setDuration(&c.PollInterval, root.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&c.FunctionTimeout, root.FunctionTimeout, "function_timeout"); err != nil {
		return err
	}
	if s := root.Storage; s != nil {
		setIf(&c.Storage.Objects, s.Objects)
		setIf(&c.Storage.Database, s.Database)
		setIf(&c.Storage.Channel, s.Channel)
		setIf(&c.Storage.ChannelCapacity, s.ChannelCapacity)
	}
	if s := root.SocketIO; s != nil {
		c.SocketIO = &SocketIO{URL: s.URL, Namespace: s.Namespace, InsecureSkipVerify: s.InsecureSkipVerify}
	}

	content, diags := root.Remain.Content(functionSchema)
	if diags.HasErrors() {
		return diags
	}
	for _, block := range content.Blocks {
		fn, err := decodeFunction(block)
		if err != nil {
			return err
		}
		if c.Function(fn.Name) != nil {
			return fmt.Errorf("%s: duplicate function %q", fn.Source, fn.Name)
		}
		c.Functions = append(c.Functions, fn)
	}
	return c.validate()
}

func decodeFunction(block *hcl.Block) (*Function, error) {
	var body functionBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}

	fn := &Function{
		Name:        block.Labels[0],
		Handler:     body.Handler,
		Description: body.Description,
		InvokeOnly:  body.InvokeOnly,
		Source:      fmt.Sprintf("%s:%d", filepath.Base(block.DefRange.Filename), block.DefRange.Start.Line),
	}
	if body.Timeout != "" {
		d, err := time.ParseDuration(body.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: function %q: invalid timeout: %w", fn.Source, fn.Name, err)
		}
		fn.Timeout = d
	}
	for _, p := range body.Params {
		fn.Params = append(fn.Params, &Parameter{
			Name:    p.Name,
			Binding: p.Binding,
			Body:    p.Remain,
		})
	}
	return fn, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if !slices.Contains([]string{ChannelMemory, ChannelSQLite}, c.Storage.Channel) {
		errs = append(errs, fmt.Errorf("unknown storage channel %q", c.Storage.Channel))
	}
	return errors.Join(errs...)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
