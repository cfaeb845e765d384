package engine

import (
	"context"
	"net/http"

	"github.com/tlind/bulkcat/pkg/client"
)

// Executor performs one attempt for an item, returning the attempt result
// or a transport error. The pool is blind to whether calls are real or
// simulated; it sees only the Item to Outcome contract.
type Executor func(ctx context.Context, h *client.Handle, item Item) (client.Result, error)

// HTTPExecutor performs the item's call against the catalog API.
func HTTPExecutor() Executor {
	return func(ctx context.Context, h *client.Handle, item Item) (client.Result, error) {
		return h.Send(ctx, item.Method, item.Path, item.Body)
	}
}

// DryRunExecutor simulates success with zero network calls.
func DryRunExecutor() Executor {
	return func(ctx context.Context, h *client.Handle, item Item) (client.Result, error) {
		return client.Result{StatusCode: http.StatusOK}, nil
	}
}
