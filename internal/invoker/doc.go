// Package invoker runs one invocation of an indexed function: it builds the
// binding data, binds every parameter in declaration order, calls the
// function, flushes outputs and releases resources in reverse order.
//
// Invoke never panics and never returns an error; failures are recorded as
// a Fault on the Result.
package invoker
