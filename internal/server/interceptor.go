package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netmark/loadlab/internal/metrics"
)

type startTimeKey struct{}

// WithStartTime returns a copy of ctx carrying the request start time.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

// StartTime returns the start time stored by the interceptor, if any.
func StartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey{}).(time.Time)
	return t, ok
}

// EndpointOf identifies the endpoint of a request: the matched route
// pattern, or the raw path when no route matched.
func EndpointOf(ctx *gin.Context) string {
	if p := ctx.FullPath(); p != "" {
		return p
	}
	return ctx.Request.URL.Path
}

// Interceptor records one sample per request/response cycle into collector
// while a run is active. Routes listed in skip are never recorded. When no
// run is active the request passes straight through.
func Interceptor(collector *metrics.Collector, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(ctx *gin.Context) {
		if !collector.Active() {
			ctx.Next()
			return
		}
		if _, ok := skipped[EndpointOf(ctx)]; ok {
			ctx.Next()
			return
		}

		ctx.Request = ctx.Request.WithContext(WithStartTime(ctx.Request.Context(), time.Now()))

		ctx.Next()

		start, ok := StartTime(ctx.Request.Context())
		if !ok {
			return
		}
		collector.Record(metrics.Sample{
			Endpoint: EndpointOf(ctx),
			Elapsed:  time.Since(start),
			Status:   ctx.Writer.Status(),
		})
	}
}
