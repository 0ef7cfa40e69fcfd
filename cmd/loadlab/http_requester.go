package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/netmark/loadlab/internal/httpclient"
	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/runner"
	"github.com/netmark/loadlab/internal/tracing"
)

const maxLoggedBodyBytes = 1024

// httpRequester performs one simulated request and records its outcome.
type httpRequester struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	collector *metrics.Collector
	tracer    trace.Tracer
	propagate bool
}

func (r *httpRequester) Do(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	info, _ := runner.RequestInfoFrom(ctx)

	ctx, span := tracing.StartRequest(ctx, r.tracer, r.builder.Method(), r.builder.Endpoint(), info.ID)
	start := time.Now()
	status, err := r.send(ctx)
	elapsed := time.Since(start)

	r.collector.RecordWithError(metrics.Sample{
		Endpoint: r.builder.Endpoint(),
		Elapsed:  elapsed,
		Status:   status,
	}, info.ID, err)

	span.Finish(status, err)
	return err
}

// send returns the response status, or 0 when no response arrived. The body
// is consumed before returning so elapsed time covers the full transfer.
func (r *httpRequester) send(ctx context.Context) (int, error) {
	req, err := r.builder.Build(ctx)
	if err != nil {
		return 0, err
	}
	if r.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		if readErr != nil {
			return resp.StatusCode, readErr
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &runner.StatusError{
			Code:    resp.StatusCode,
			Snippet: strings.TrimSpace(string(snippet)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
