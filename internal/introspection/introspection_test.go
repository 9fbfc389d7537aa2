package introspection

import (
	"context"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, sdl, query string) map[string]any {
	t.Helper()
	sch, err := language.LoadSchema("test", sdl)
	require.NoError(t, err)
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	data, errs := Execute(context.Background(), sch, doc, nil)
	require.Empty(t, errs)
	return data
}

func TestExecute_SchemaRoots(t *testing.T) {
	data := execute(t, `
		type Query { a: Int }
		type Mutation { doIt: Int }
	`, `{
		__schema {
			queryType { name }
			mutationType { name }
			subscriptionType { name }
		}
	}`)

	want := map[string]any{"__schema": map[string]any{
		"queryType":        map[string]any{"name": "Query"},
		"mutationType":     map[string]any{"name": "Mutation"},
		"subscriptionType": nil,
	}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_TypeLookup(t *testing.T) {
	data := execute(t, `
		type Query { user: User }
		type User {
			id: ID!
			name: String @deprecated(reason: "use fullName")
			fullName: String
		}
	`, `{
		__type(name: "User") {
			kind
			name
			fields { name type { kind name ofType { name } } }
		}
	}`)

	user := data["__type"].(map[string]any)
	require.Equal(t, "OBJECT", user["kind"])
	require.Equal(t, "User", user["name"])

	fields := user["fields"].([]any)
	// Deprecated fields are hidden by default.
	require.Len(t, fields, 2)
	first := fields[0].(map[string]any)
	require.Equal(t, "fullName", first["name"])
	second := fields[1].(map[string]any)
	require.Equal(t, "id", second["name"])
	idType := second["type"].(map[string]any)
	require.Equal(t, "NON_NULL", idType["kind"])
	require.Nil(t, idType["name"])
	require.Equal(t, map[string]any{"name": "ID"}, idType["ofType"])
}

func TestExecute_DeprecatedFieldsOptIn(t *testing.T) {
	data := execute(t, `
		type Query { a: String @deprecated }
	`, `{
		__type(name: "Query") {
			fields(includeDeprecated: true) { name isDeprecated deprecationReason }
		}
	}`)

	fields := data["__type"].(map[string]any)["fields"].([]any)
	require.Len(t, fields, 1)
	field := fields[0].(map[string]any)
	require.Equal(t, true, field["isDeprecated"])
	reason := field["deprecationReason"].(*string)
	require.Equal(t, "No longer supported", *reason)
}

func TestExecute_PossibleTypesAndEnums(t *testing.T) {
	data := execute(t, `
		type Query { node: Node color: Color }
		interface Node { id: ID }
		type User implements Node { id: ID }
		type Post implements Node { id: ID }
		enum Color { RED GREEN }
	`, `{
		iface: __type(name: "Node") { possibleTypes { name } }
		color: __type(name: "Color") { enumValues { name } }
	}`)

	iface := data["iface"].(map[string]any)
	possible := iface["possibleTypes"].([]any)
	require.Len(t, possible, 2)
	require.Equal(t, "Post", possible[0].(map[string]any)["name"])
	require.Equal(t, "User", possible[1].(map[string]any)["name"])

	enumValues := data["color"].(map[string]any)["enumValues"].([]any)
	require.Len(t, enumValues, 2)
}

func TestExecute_UnknownTypeIsNull(t *testing.T) {
	data := execute(t, `type Query { a: Int }`, `{ __type(name: "Nope") { name } }`)
	require.Nil(t, data["__type"])
}

func TestExecute_UnknownRootFieldIsError(t *testing.T) {
	sch, err := language.LoadSchema("test", `type Query { a: Int }`)
	require.NoError(t, err)
	doc, err := language.ParseQuery(`{ whatever }`)
	require.NoError(t, err)
	data, errs := Execute(context.Background(), sch, doc, nil)
	require.Len(t, errs, 1)
	require.Nil(t, data["whatever"])
}
