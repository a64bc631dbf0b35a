// Package registry provides the central "glue" for the extension system.
//
// The Registry maps the string identifiers used in function manifests (a
// handler name, a binding kind such as "blob") to the compiled Go handlers,
// tag decoders and binding rules that implement them. Extensions populate it
// through the Module interface during startup; the host then validates and
// seals it before indexing any function.
package registry
