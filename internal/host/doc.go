// Package host wires a jobhost instance together: it opens storage, registers
// extensions, indexes the configured functions and runs their listeners,
// decoupled from any specific entrypoint like a CLI.
package host
