package hostconfig

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Channel backends for Storage.Channel.
const (
	ChannelMemory = "memory"
	ChannelSQLite = "sqlite"
)

// Config is the merged configuration of every loaded file.
type Config struct {
	LogLevel        string
	LogFormat       string
	Workers         int
	PollInterval    time.Duration
	FunctionTimeout time.Duration
	MaxDequeueCount int
	SettingsFile    string
	Storage         Storage
	// SocketIO is nil when no socketio block is configured.
	SocketIO  *SocketIO
	Functions []*Function
}

// Storage locates the host's state.
type Storage struct {
	// Objects is an afs URL or a local directory.
	Objects         string
	Database        string
	Channel         string
	ChannelCapacity int
}

// SocketIO configures the socket.io connection used by socketio bindings.
type SocketIO struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
}

// Function is one `function` manifest block.
type Function struct {
	Name        string
	Handler     string
	Description string
	InvokeOnly  bool
	Timeout     time.Duration
	Params      []*Parameter
	// Source is "file:line" of the block header.
	Source string
}

// Parameter is one `parameter` block. Body holds the attributes left for
// the binding's tag decoder.
type Parameter struct {
	Name    string
	Binding string
	Body    hcl.Body
}

// Defaults returns the configuration used for anything a file leaves unset.
func Defaults() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Workers:         4,
		PollInterval:    time.Second,
		MaxDequeueCount: 5,
		Storage: Storage{
			Objects:         "data",
			Database:        "jobhost.db",
			Channel:         ChannelSQLite,
			ChannelCapacity: 1024,
		},
	}
}

// Function returns the manifest named name, or nil.
func (c *Config) Function(name string) *Function {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
