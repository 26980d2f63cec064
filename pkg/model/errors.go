package model

import "fmt"

// Error taxonomy, mirroring original_source/common/src/lib.rs's
// LogSystemError enum. Each service translates these into an HTTP status
// at its edge; there is no cross-service error payload contract beyond
// the status code and a human-readable message.

// RateLimitError means an app exceeded its quota. Surfaced as HTTP 429 by
// Ingestion. Not retried.
type RateLimitError struct {
	AppName string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.AppName)
}

// StorageError wraps a failure from the Storage service. Surfaced as
// HTTP 500 by Ingestion and Search. Not retried.
type StorageError struct {
	Detail string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s", e.Detail)
}

// NetworkError means a downstream service could not be reached.
// Surfaced as HTTP 503 by Search when Storage is unreachable; inside the
// Agent it is the trigger for the retry-then-spill loop.
type NetworkError struct {
	Detail string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Detail)
}
