package result

import (
	"context"

	language "github.com/BigSchema/stitch/internal/language"
)

// Error is a located GraphQL execution error.
type Error struct {
	Message    string         `json:"message"`
	Path       language.Path  `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
	Err        error          `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an error with a message and an optional response path.
func NewError(message string, path language.Path) *Error {
	return &Error{Message: message, Path: path}
}

// WrapError builds an error carrying err as its cause.
func WrapError(message string, err error) *Error {
	return &Error{Message: message, Err: err}
}

// Result is the value produced by a subschema executor or by the composer.
//
// Exactly one of the two shapes is populated:
//   - non-incremental: Data and Errors
//   - incremental: Initial and Subsequent
type Result struct {
	Data   map[string]any `json:"data"`
	Errors []*Error       `json:"errors,omitempty"`

	Initial    *Initial `json:"initialResult,omitempty"`
	Subsequent Stream   `json:"-"`

	// Nulled reports that the whole response data was nulled by a root-level
	// failure; Data is reported as JSON null in that case.
	Nulled bool `json:"-"`
}

// Initial is the immediate part of an incremental result.
type Initial struct {
	Data    map[string]any `json:"data"`
	Errors  []*Error       `json:"errors,omitempty"`
	HasNext bool           `json:"hasNext"`
}

// Payload is one delta of an incremental result stream.
type Payload struct {
	Incremental []any          `json:"incremental,omitempty"`
	HasNext     bool           `json:"hasNext"`
	Extensions  map[string]any `json:"extensions,omitempty"`
}

// Stream is a lazy sequence of incremental payloads. Next blocks until a
// payload is available; done=true means the sequence ended and the returned
// payload (possibly nil) is the terminal value. Return is the early
// termination hook and must be safe to call concurrently with Next.
type Stream interface {
	Next(ctx context.Context) (payload *Payload, done bool, err error)
	Return() error
}

// ResultStream is a lazy sequence of full results, as produced by a
// subscription root.
type ResultStream interface {
	Next(ctx context.Context) (res *Result, done bool, err error)
	Return() error
}
