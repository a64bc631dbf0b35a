// internal/binding/doc.go

/*
Package binding resolves a parameter's binding declaration (its tag) and Go
type into a ParameterSpec: a description of how the parameter is produced
before an invocation and, for outputs, flushed after it.

Extensions register rules per tag type, usually through the fluent builder:

	binding.BindToInput(
		binding.On[blob.Blob](reg).WhenSet("Path").WithTemplate(blob.PathOf),
		"blob-input", openBlob,
	)

Rules for one tag type are tried in registration order. The first rule that
does not decline wins. Resolution is pure: it never performs I/O, so
resolving the same tag and type twice yields equivalent specs.
*/
package binding
