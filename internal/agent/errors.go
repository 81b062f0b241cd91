package agent

import (
	"errors"
	"fmt"
)

// ErrInvalidMaxRounds is returned when a prompt is submitted with a round
// limit below one.
var ErrInvalidMaxRounds = errors.New("agent: maxRounds must be at least 1")

// ToolNotFoundError reports a tool call naming a tool absent from the
// session's snapshot.
type ToolNotFoundError struct {
	Name  string
	Round int
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("agent: round %d: tool %q not found", e.Round, e.Name)
}

// ToolInputValidationError reports a tool call whose input does not conform
// to the tool's parameter schema.
type ToolInputValidationError struct {
	Name  string
	Round int
	Err   error
}

func (e *ToolInputValidationError) Error() string {
	return fmt.Sprintf("agent: round %d: tool %q: %v", e.Round, e.Name, e.Err)
}

func (e *ToolInputValidationError) Unwrap() error { return e.Err }

// ToolExecutionError wraps an unexpected failure returned by a tool.
type ToolExecutionError struct {
	Name  string
	Round int
	Err   error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("agent: round %d: tool %q failed: %v", e.Round, e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// CompletionServiceError wraps a failed call to the completion service.
type CompletionServiceError struct {
	Round int
	Err   error
}

func (e *CompletionServiceError) Error() string {
	return fmt.Sprintf("agent: round %d: completion failed: %v", e.Round, e.Err)
}

func (e *CompletionServiceError) Unwrap() error { return e.Err }
