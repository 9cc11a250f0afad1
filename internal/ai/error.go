package ai

import "fmt"

// APIError is a non-2xx reply from the upstream model API. Callers
// inspect StatusCode to tell a rejected key from a transient failure.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api status %d: %s", e.StatusCode, e.Body)
}

// IsAuth reports whether the upstream rejected the credential itself.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
