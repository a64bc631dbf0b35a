// Package store provides the host's durable state in a single SQLite file:
// table rows, durable channel messages, blob receipts and the invocation log.
//
// Store implements storage.Table, storage.Channel and invoker.Recorder.
package store
