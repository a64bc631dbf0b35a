package listener

import "context"

type functionKey struct{}

// WithFunction records the name of the function a listener serves.
func WithFunction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionKey{}, name)
}

// Function returns the name set by WithFunction, or "".
func Function(ctx context.Context) string {
	name, _ := ctx.Value(functionKey{}).(string)
	return name
}
