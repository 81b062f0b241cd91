package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is wrapped when no registered provider serves a model.
var ErrNoProvider = errors.New("no LLM provider")

// ProviderError is a failure reported by a completion or embedding backend.
// Code carries the HTTP status when the backend returned one.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Auth reports whether the backend rejected the credentials.
func (e *ProviderError) Auth() bool { return e.Code == 401 || e.Code == 403 }

var failoverCodes = map[int]bool{401: true, 403: true, 429: true, 500: true, 502: true, 503: true, 529: true}

var overloadHints = []string{"overloaded", "rate limit", "capacity", "timeout"}

// ShouldFailover reports whether err is worth handing to another model.
// Auth failures count: a fallback may hold different credentials.
func ShouldFailover(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && failoverCodes[pe.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range overloadHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// ShouldRetry reports whether err is worth retrying against the same
// provider. Auth failures are not.
func ShouldRetry(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Auth() {
		return false
	}
	return ShouldFailover(err)
}
