// Package runner drives simulated users against a target.
//
// Each of Users workers issues RequestsPerUser sequential requests through a
// [Requester], sleeping Delay between consecutive requests. Workers run
// independently; Run returns only after every worker has finished its full
// sequence.
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Users:           10,
//		RequestsPerUser: 10,
//		Delay:           100 * time.Millisecond,
//		Requester:       myRequester,
//	})
//	result := r.Run(ctx)
//
// # Rate Limiting
//
// RatePerSecond caps the combined request rate of all users with a shared
// token bucket. Zero means no cap; pacing then comes from Delay alone.
//
// # Request Identity
//
// Every call to Requester.Do receives a context carrying a [RequestInfo]
// that identifies the user and the position of the request in its sequence.
//
// # Failures
//
// [OnFailure] wraps a requester so every failed request is also handed to a
// callback, typically a logger. HTTP responses with status 400 or above are
// reported as [*StatusError].
package runner
