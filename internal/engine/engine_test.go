package engine

import (
	"context"
	"sync"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
	"github.com/stretchr/testify/require"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func newSubschema(t *testing.T, name, sdl string, data map[string]any) *superschema.Subschema {
	t.Helper()
	sch, err := language.LoadSchema(name, sdl)
	if err != nil {
		t.Fatalf("load schema %s: %v", name, err)
	}
	return &superschema.Subschema{
		Name:   name,
		Schema: sch,
		Executor: func(context.Context, superschema.Request) (*result.Result, error) {
			return &result.Result{Data: data}, nil
		},
	}
}

func newTestEngine(t *testing.T, subschemas ...*superschema.Subschema) *Engine {
	t.Helper()
	ss, err := superschema.New(subschemas...)
	if err != nil {
		t.Fatalf("super-schema: %v", err)
	}
	return New(ss)
}

func TestExecute_Passthrough(t *testing.T) {
	eng := newTestEngine(t,
		newSubschema(t, "A", `type Query { a: Int }`, map[string]any{"a": 1}),
	)
	res := eng.Execute(context.Background(), Params{Document: mustParseQuery(t, `{ a }`)})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"a": 1}, res.Data)
}

func TestExecute_MustProvideOperation(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `fragment F on Query { a }`)
	res := eng.Execute(context.Background(), Params{Document: doc})
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Must provide an operation.", res.Errors[0].Message)
}

func TestExecute_MultipleOperationsWithoutName(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `query One { a } query Two { a }`)
	res := eng.Execute(context.Background(), Params{Document: doc})
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Must provide operation name if query contains multiple operations.", res.Errors[0].Message)
}

func TestExecute_UnknownOperationName(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `query One { a }`)
	res := eng.Execute(context.Background(), Params{Document: doc, OperationName: "Missing"})
	require.Len(t, res.Errors, 1)
	require.Equal(t, `Unknown operation named "Missing".`, res.Errors[0].Message)
}

func TestExecute_VariableCoercionErrorsReturned(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `query ($x: Boolean!) { a }`)
	res := eng.Execute(context.Background(), Params{Document: doc})
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, `Variable "$x"`)
}

func TestExecute_MissingRootType(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `mutation { doIt }`)
	res := eng.Execute(context.Background(), Params{Document: doc})
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Schema is not configured to execute mutation operation.", res.Errors[0].Message)
}

func TestSubscribe_SubschemaWithoutSubscriber(t *testing.T) {
	sdl := `type Query { a: Int } type Subscription { ticks: Int }`
	eng := newTestEngine(t, newSubschema(t, "A", sdl, nil))
	doc := mustParseQuery(t, `subscription { ticks }`)
	stream, errRes := eng.Subscribe(context.Background(), Params{Document: doc})
	require.Nil(t, stream)
	require.NotNil(t, errRes)
	require.Len(t, errRes.Errors, 1)
	require.Equal(t, "Subschema is not configured to execute subscription operation.", errRes.Errors[0].Message)
}

// tickStream yields the scripted results then ends.
type tickStream struct {
	mu       sync.Mutex
	items    []*result.Result
	returned bool
}

func (s *tickStream) Next(ctx context.Context) (*result.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, true, nil
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, false, nil
}

func (s *tickStream) Return() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returned = true
	return nil
}

func TestSubscribe_StreamsStitchedEvents(t *testing.T) {
	sch, err := language.LoadSchema("A", `type Query { a: Int } type Subscription { ticks: Int }`)
	require.NoError(t, err)
	src := &tickStream{items: []*result.Result{
		{Data: map[string]any{"ticks": 1}},
		{Data: map[string]any{"ticks": 2}},
	}}
	sub := &superschema.Subschema{
		Name:   "A",
		Schema: sch,
		Executor: func(context.Context, superschema.Request) (*result.Result, error) {
			return &result.Result{}, nil
		},
		Subscriber: func(context.Context, superschema.Request) (result.ResultStream, error) {
			return src, nil
		},
	}
	eng := newTestEngine(t, sub)

	doc := mustParseQuery(t, `subscription { ticks }`)
	stream, errRes := eng.Subscribe(context.Background(), Params{Document: doc})
	require.Nil(t, errRes)
	require.NotNil(t, stream)

	ctx := context.Background()
	first, done, err := stream.Next(ctx)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, map[string]any{"ticks": 1}, first.Data)

	second, done, err := stream.Next(ctx)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, map[string]any{"ticks": 2}, second.Data)

	_, done, err = stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, done)

	require.NoError(t, stream.Return())
	require.True(t, src.returned)
}

func TestSubscribe_RejectsQueryOperations(t *testing.T) {
	eng := newTestEngine(t, newSubschema(t, "A", `type Query { a: Int }`, nil))
	doc := mustParseQuery(t, `{ a }`)
	stream, errRes := eng.Subscribe(context.Background(), Params{Document: doc})
	require.Nil(t, stream)
	require.NotNil(t, errRes)
}
