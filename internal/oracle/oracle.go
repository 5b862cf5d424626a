// Package oracle abstracts the generative text service that authors candidate
// source code. The oracle is treated as an untrusted, fallible black box:
// callers validate everything it returns.
package oracle

import (
	"context"
	"fmt"
)

// Client is a text-completion oracle. Complete issues exactly one request
// with deterministic sampling and returns the raw response text; it never
// retries internally, because a meaningful retry needs a different prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Failure reasons carried by Error.
const (
	ReasonEmptyResponse = "empty_response"
	ReasonRequestFailed = "request_failed"
)

// Error tags an oracle failure with a machine-readable reason so the repair
// loop can count it as a spent attempt.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle %s: %v", e.Reason, e.Err)
	}
	return "oracle " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }
