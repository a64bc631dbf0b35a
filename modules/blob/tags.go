// Package blob binds function parameters to objects in an object store and
// triggers functions when objects matching a path template appear or
// change.
package blob

// Access values for Blob.Access. An empty Access is inferred from the
// parameter type.
const (
	AccessRead      = "read"
	AccessWrite     = "write"
	AccessReadWrite = "readwrite"
)

// Blob binds a parameter to the object at Path. Path is a template filled
// from binding data.
type Blob struct {
	Path   string `hcl:"path"`
	Access string `hcl:"access,optional"`
}

func (Blob) BindingName() string { return "blob" }

// BlobTrigger fires the function for objects whose path matches Path.
type BlobTrigger struct {
	Path string `hcl:"path"`
}

func (BlobTrigger) BindingName() string { return "blob_trigger" }
func (BlobTrigger) IsTrigger() bool     { return true }

// Event is a structured trigger payload and a trigger parameter type.
type Event struct {
	Path string
	Size int64
}
