package collector

import (
	"context"
	"fmt"

	"github.com/trace2pass/trace2pass/internal/baselib/actor"
)

// ask sends req to ref and blocks for the typed response, unwrapping
// the actor.Future/fn.Result plumbing and asserting the response down
// to the concrete type T the caller expects. This replaces the
// generic Ask-then-Await-then-assert boilerplate every REST handler
// below would otherwise repeat.
func ask[T Response](ctx context.Context, ref actor.ActorRef[Request, Response],
	req Request) (T, error) {

	var zero T

	result := ref.Ask(ctx, req).Await(ctx)
	resp, err := result.Unpack()
	if err != nil {
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf(
			"collector: unexpected response type %T for request %T",
			resp, req)
	}
	return typed, nil
}
