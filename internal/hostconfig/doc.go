// Package hostconfig loads the host's HCL configuration: runtime settings,
// storage locations and the `function` manifests that declare which Go
// handler runs for which bindings.
package hostconfig
