package embedding

import (
	"fmt"
	"time"
)

// ProviderError is an error response from the embedding provider. Rate
// limiting (429) and server errors (5xx) are retryable; everything else
// aborts the affected item or batch without retrying.
type ProviderError struct {
	StatusCode int
	RetryAfter time.Duration // provider-supplied hint, 0 when absent
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error (status=%d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the error warrants backoff and retry.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
