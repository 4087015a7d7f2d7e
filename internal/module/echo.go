package module

import (
	"context"
	"strings"
)

// Echo is the trivial built-in module: it emits every input locator back
// under its own key. Used by tests and as a smoke module for new
// deployments.
type Echo struct{}

func (Echo) Name() string { return "echo" }

func (e Echo) Map(ctx context.Context, in *Input, out *Output) error {
	for {
		ref, ok := in.Next()
		if !ok {
			return ctx.Err()
		}
		out.Emit(ref, ref)
	}
}

func (e Echo) Reduce(ctx context.Context, key string, in *Input, out *Output) error {
	out.Emit(key, strings.Join(in.Refs(), ","))
	return ctx.Err()
}
