package plan

import (
	"context"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
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

// newTestSubschema builds a subschema from SDL with an executor that is
// never expected to run during planning.
func newTestSubschema(t *testing.T, name, sdl string) *superschema.Subschema {
	t.Helper()
	sch, err := language.LoadSchema(name, sdl)
	if err != nil {
		t.Fatalf("load schema %s: %v", name, err)
	}
	return &superschema.Subschema{
		Name:   name,
		Schema: sch,
		Executor: func(context.Context, superschema.Request) (*result.Result, error) {
			t.Fatalf("executor of %s must not run during planning", name)
			return nil, nil
		},
	}
}

func mustSuperSchema(t *testing.T, subschemas ...*superschema.Subschema) *superschema.SuperSchema {
	t.Helper()
	ss, err := superschema.New(subschemas...)
	if err != nil {
		t.Fatalf("super-schema: %v", err)
	}
	return ss
}
