package runner

import (
	"context"
	"strconv"
)

// RequestInfo identifies one request of one simulated user.
type RequestInfo struct {
	User int // 0-based user index
	Seq  int // 0-based position in the user's sequence
	ID   string
}

type requestInfoKey struct{}

func newRequestInfo(user, seq, perUser int) RequestInfo {
	return RequestInfo{User: user, Seq: seq, ID: strconv.Itoa(user*perUser + seq)}
}

// WithRequestInfo returns a copy of ctx carrying info.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom extracts the request identity placed by the runner.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
