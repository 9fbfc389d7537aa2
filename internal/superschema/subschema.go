package superschema

import (
	"context"

	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
)

// Request is the unit of work sent to a subschema executor: a single
// operation document plus the raw (uncoerced) variable values.
type Request struct {
	Document  *language.QueryDocument
	Variables map[string]any
}

// ExecutorFunc resolves a request against one subschema. A returned error
// is treated as a transport-level rejection and wrapped into a GraphQL
// error with null data by the caller.
type ExecutorFunc func(ctx context.Context, req Request) (*result.Result, error)

// SubscriberFunc opens a subscription against one subschema, yielding a
// lazy sequence of results.
type SubscriberFunc func(ctx context.Context, req Request) (result.ResultStream, error)

// Subschema is a single backend: its schema, a required executor, and an
// optional subscriber. A subschema without a subscriber cannot serve
// subscription operations.
type Subschema struct {
	Name       string
	Schema     *language.Schema
	Executor   ExecutorFunc
	Subscriber SubscriberFunc
}
