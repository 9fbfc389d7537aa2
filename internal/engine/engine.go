// Package engine is the entry point of the stitching gateway: it builds
// the execution context for an operation, asks the planner for a root
// field plan, and drives a composer to produce the response.
package engine

import (
	"context"
	"fmt"

	compose "github.com/BigSchema/stitch/internal/compose"
	language "github.com/BigSchema/stitch/internal/language"
	plan "github.com/BigSchema/stitch/internal/plan"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// Engine executes operations against a super-schema. It is immutable and
// safe for concurrent use.
type Engine struct {
	superSchema *superschema.SuperSchema
	varOpts     *superschema.VariableOptions
}

// Option configures the engine.
type Option func(*Engine)

// WithMaxCoercionErrors caps variable coercion errors per request.
func WithMaxCoercionErrors(n int) Option {
	return func(e *Engine) { e.varOpts = &superschema.VariableOptions{MaxErrors: n} }
}

// New creates an engine over the given super-schema.
func New(ss *superschema.SuperSchema, opts ...Option) *Engine {
	e := &Engine{superSchema: ss}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params identify one operation to execute.
type Params struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
}

type execContext struct {
	operation *language.OperationDefinition
	variables map[string]any
	fieldPlan *plan.FieldPlan
}

// Execute runs a query or mutation operation and returns the stitched
// response. Subscription operations must go through Subscribe.
func (e *Engine) Execute(ctx context.Context, p Params) *result.Result {
	ec, errRes := e.buildContext(p)
	if errRes != nil {
		return errRes
	}
	if ec.operation.Operation == language.Subscription {
		return errorResult("subscription operations must be executed via Subscribe")
	}
	composer := compose.New(e.superSchema, ec.fieldPlan, ec.operation, p.Document.Fragments, p.Variables)
	return composer.Compose(ctx)
}

// Subscribe runs a subscription operation. On success the returned stream
// yields one stitched result per event; otherwise the error result is
// non-nil.
func (e *Engine) Subscribe(ctx context.Context, p Params) (result.ResultStream, *result.Result) {
	ec, errRes := e.buildContext(p)
	if errRes != nil {
		return nil, errRes
	}
	if ec.operation.Operation != language.Subscription {
		return nil, errorResult(fmt.Sprintf("%s operations must be executed via Execute", ec.operation.Operation))
	}
	composer := compose.New(e.superSchema, ec.fieldPlan, ec.operation, p.Document.Fragments, p.Variables)
	return composer.Subscribe(ctx)
}

func (e *Engine) buildContext(p Params) (*execContext, *result.Result) {
	op, errRes := resolveOperation(p.Document, p.OperationName)
	if errRes != nil {
		return nil, errRes
	}

	coerced, errs := e.superSchema.GetVariableValues(op.VariableDefinitions, p.Variables, e.varOpts)
	if len(errs) > 0 {
		return nil, &result.Result{Errors: errs}
	}

	if e.superSchema.GetRootType(op.Operation) == nil {
		return nil, errorResult(fmt.Sprintf("Schema is not configured to execute %s operation.", op.Operation))
	}

	fieldPlan, err := plan.Plan(e.superSchema, p.Document, op, coerced)
	if err != nil {
		return nil, &result.Result{Errors: []*result.Error{result.WrapError(err.Error(), err)}}
	}
	return &execContext{operation: op, variables: coerced, fieldPlan: fieldPlan}, nil
}

func resolveOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, *result.Result) {
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, errorResult("Must provide an operation.")
		case 1:
			return doc.Operations[0], nil
		default:
			return nil, errorResult("Must provide operation name if query contains multiple operations.")
		}
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, errorResult(fmt.Sprintf("Unknown operation named %q.", name))
	}
	return op, nil
}

func errorResult(message string) *result.Result {
	return &result.Result{Errors: []*result.Error{result.NewError(message, nil)}}
}
