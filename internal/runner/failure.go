package runner

import (
	"context"
	"fmt"
)

// StatusError is returned for a response with status 400 or above. Snippet
// holds the start of the response body, trimmed.
type StatusError struct {
	Code    int
	Snippet string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Snippet)
}

// RequesterFunc adapts a plain function to [Requester].
type RequesterFunc func(ctx context.Context) error

// Do calls f(ctx).
func (f RequesterFunc) Do(ctx context.Context) error { return f(ctx) }

// OnFailure returns a Requester that passes every error of req to report
// before returning it. A nil report leaves req unwrapped.
func OnFailure(req Requester, report func(ctx context.Context, err error)) Requester {
	if report == nil {
		return req
	}
	return RequesterFunc(func(ctx context.Context) error {
		err := req.Do(ctx)
		if err != nil {
			report(ctx, err)
		}
		return err
	})
}
