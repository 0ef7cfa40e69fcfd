// Package httpclient builds and sends the requests of simulated users and
// talks to the service's tracking endpoints.
//
// # Request Building
//
// Use [NewRequestBuilder] to create a request builder from configuration.
// The body is loaded once into a [Payload]; every call to Build returns an
// independent request with its own headers and a replayable body:
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx)
//
// # HTTP Client
//
// [NewClient] returns a client sized for many concurrent users against a
// single host, with the per-request timeout applied:
//
//	client := httpclient.NewClient(10 * time.Second)
//	resp, err := client.Do(req)
//
// # Server Tracking
//
// [TrackingClient] starts and stops the service's own measurement window
// around a run. Any failure wraps [ErrTrackingUnavailable].
package httpclient
