package compose

import (
	"context"
	"sync"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
	plan "github.com/BigSchema/stitch/internal/plan"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// mockSubschema is a scripted subschema: each incoming request is recorded
// (as formatted GraphQL source) and answered by the configured resolve
// function.
type mockSubschema struct {
	sub *superschema.Subschema

	mu      sync.Mutex
	queries []string
}

func newMockSubschema(t *testing.T, name, sdl string, resolve func(req superschema.Request) (*result.Result, error)) *mockSubschema {
	t.Helper()
	sch, err := language.LoadSchema(name, sdl)
	if err != nil {
		t.Fatalf("load schema %s: %v", name, err)
	}
	m := &mockSubschema{}
	m.sub = &superschema.Subschema{
		Name:   name,
		Schema: sch,
		Executor: func(ctx context.Context, req superschema.Request) (*result.Result, error) {
			m.mu.Lock()
			m.queries = append(m.queries, language.FormatQueryDocument(req.Document))
			m.mu.Unlock()
			return resolve(req)
		},
	}
	return m
}

func (m *mockSubschema) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// dataResolver answers every request with a fixed data map.
func dataResolver(data map[string]any) func(superschema.Request) (*result.Result, error) {
	return func(superschema.Request) (*result.Result, error) {
		return &result.Result{Data: data}, nil
	}
}

// sliceStream yields a fixed sequence of payloads, then terminates.
type sliceStream struct {
	mu    sync.Mutex
	items []*result.Payload
}

func newSliceStream(items []*result.Payload) *sliceStream {
	return &sliceStream{items: items}
}

func (s *sliceStream) Next(ctx context.Context) (*result.Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, true, nil
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, false, nil
}

func (s *sliceStream) Return() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

// composeQuery plans and composes the query against the given subschemas.
func composeQuery(t *testing.T, query string, variables map[string]any, mocks ...*mockSubschema) *result.Result {
	t.Helper()
	subschemas := make([]*superschema.Subschema, len(mocks))
	for i, m := range mocks {
		subschemas[i] = m.sub
	}
	ss, err := superschema.New(subschemas...)
	if err != nil {
		t.Fatalf("super-schema: %v", err)
	}
	doc := mustParseQuery(t, query)
	op := doc.Operations[0]
	fieldPlan, err := plan.Plan(ss, doc, op, variables)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	composer := New(ss, fieldPlan, op, doc.Fragments, variables)
	return composer.Compose(context.Background())
}
