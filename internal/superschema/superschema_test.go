package superschema

import (
	"context"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
	"github.com/stretchr/testify/require"
)

func newTestSubschema(t *testing.T, name, sdl string) *Subschema {
	t.Helper()
	sch, err := language.LoadSchema(name, sdl)
	if err != nil {
		t.Fatalf("load schema %s: %v", name, err)
	}
	return &Subschema{
		Name:   name,
		Schema: sch,
		Executor: func(context.Context, Request) (*result.Result, error) {
			return &result.Result{}, nil
		},
	}
}

func TestNew_MergesRootTypes(t *testing.T) {
	subA := newTestSubschema(t, "A", `type Query { a: Int }`)
	subB := newTestSubschema(t, "B", `type Query { b: Int } type Mutation { doB: Int }`)

	ss, err := New(subA, subB)
	require.NoError(t, err)

	query := ss.GetRootType(language.Query)
	require.NotNil(t, query)
	require.NotNil(t, query.Fields.ForName("a"))
	require.NotNil(t, query.Fields.ForName("b"))

	mutation := ss.GetRootType(language.Mutation)
	require.NotNil(t, mutation)
	require.NotNil(t, mutation.Fields.ForName("doB"))
	require.Nil(t, ss.GetRootType(language.Subscription))
}

func TestNew_ObjectFieldsUnionFirstWins(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { user: User }
		"first user"
		type User { id: ID name: String }
	`)
	subB := newTestSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID! email: String }
	`)

	ss, err := New(subA, subB)
	require.NoError(t, err)

	user := ss.GetType("User")
	require.NotNil(t, user)
	require.Equal(t, "first user", user.Description)
	require.NotNil(t, user.Fields.ForName("name"))
	require.NotNil(t, user.Fields.ForName("email"))
	// Duplicate id keeps the first definition (nullable ID).
	require.False(t, user.Fields.ForName("id").Type.NonNull)
}

func TestNew_UnionAndEnumMemberUnion(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { media: Media }
		union Media = Book
		type Book { title: String }
		enum Color { RED GREEN }
	`)
	subB := newTestSubschema(t, "B", `
		type Query { other: Media }
		union Media = Movie
		type Movie { title: String }
		enum Color { GREEN BLUE }
	`)

	ss, err := New(subA, subB)
	require.NoError(t, err)

	media := ss.GetType("Media")
	require.ElementsMatch(t, []string{"Book", "Movie"}, media.Types)

	color := ss.GetType("Color")
	var values []string
	for _, ev := range color.EnumValues {
		values = append(values, ev.Name)
	}
	require.Equal(t, []string{"RED", "GREEN", "BLUE"}, values)
}

func TestNew_SubschemaSets(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`)
	subB := newTestSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`)

	ss, err := New(subA, subB)
	require.NoError(t, err)

	require.Equal(t, []*Subschema{subA}, ss.SubschemaSets["Query"]["user"])
	require.Equal(t, []*Subschema{subB}, ss.SubschemaSets["Query"]["ping"])
	require.Equal(t, []*Subschema{subA, subB}, ss.SubschemaSets["User"]["id"])
	require.Equal(t, []*Subschema{subA}, ss.SubschemaSets["User"]["name"])
	require.Equal(t, []*Subschema{subB}, ss.SubschemaSets["User"]["email"])

	// __typename resolves wherever the type does.
	require.Equal(t, []*Subschema{subA, subB}, ss.SubschemaSets["User"]["__typename"])

	// Introspection meta-fields bind to the internal subschema.
	require.Len(t, ss.SubschemaSets["Query"]["__schema"], 1)
	require.Equal(t, "__introspection", ss.SubschemaSets["Query"]["__schema"][0].Name)
	require.Len(t, ss.SubschemaSets["Query"]["__type"], 1)

	// Every composite type field has a non-empty set.
	for typeName, fields := range ss.SubschemaSets {
		for fieldName, set := range fields {
			require.NotEmpty(t, set, "%s.%s has an empty subschema set", typeName, fieldName)
		}
	}
}

func TestGetFieldDef_MetaFields(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID }
	`)
	ss, err := New(subA)
	require.NoError(t, err)

	query := ss.GetRootType(language.Query)
	require.Equal(t, "__Schema", ss.GetFieldDef(query, "__schema").Type.Name())
	require.Equal(t, "__Type", ss.GetFieldDef(query, "__type").Type.Name())
	require.Equal(t, "String", ss.GetFieldDef(ss.GetType("User"), "__typename").Type.Name())
	require.Nil(t, ss.GetFieldDef(ss.GetType("User"), "__schema"))
	require.Nil(t, ss.GetFieldDef(ss.GetType("User"), "missing"))
}

func TestIsSubTypeAndPossibleTypes(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { node: Node media: Media }
		interface Node { id: ID }
		type User implements Node { id: ID }
		union Media = User
	`)
	ss, err := New(subA)
	require.NoError(t, err)

	node := ss.GetType("Node")
	user := ss.GetType("User")
	media := ss.GetType("Media")

	require.True(t, ss.IsSubType(node, user))
	require.True(t, ss.IsSubType(media, user))
	require.True(t, ss.IsSubType(user, user))
	require.False(t, ss.IsSubType(user, node))

	possible := ss.GetPossibleTypes(node)
	require.Len(t, possible, 1)
	require.Equal(t, "User", possible[0].Name)
	require.Equal(t, []*language.Definition{user}, ss.GetPossibleTypes(user))
}

func TestNew_DirectiveMerge(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		directive @tag(name: String) on FIELD_DEFINITION
		type Query { a: Int }
	`)
	subB := newTestSubschema(t, "B", `
		directive @tag(name: String, weight: Int) repeatable on OBJECT
		type Query { b: Int }
	`)

	ss, err := New(subA, subB)
	require.NoError(t, err)

	tag := ss.Schema.Directives["tag"]
	require.NotNil(t, tag)
	require.True(t, tag.IsRepeatable)
	require.ElementsMatch(t,
		[]language.DirectiveLocation{"FIELD_DEFINITION", "OBJECT"},
		tag.Locations)
	require.NotNil(t, tag.Arguments.ForName("name"))
	require.NotNil(t, tag.Arguments.ForName("weight"))
}

func TestNew_RequiresExecutor(t *testing.T) {
	sch, err := language.LoadSchema("A", `type Query { a: Int }`)
	require.NoError(t, err)
	_, err = New(&Subschema{Name: "A", Schema: sch})
	require.Error(t, err)
}

func TestIntrospectionExecutorAnswersSchemaQueries(t *testing.T) {
	subA := newTestSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`)
	ss, err := New(subA)
	require.NoError(t, err)

	intro := ss.SubschemaSets["Query"]["__schema"][0]
	doc, err := language.ParseQuery(`{ __schema { queryType { name } } __type(name: "User") { kind name } }`)
	require.NoError(t, err)

	res, err := intro.Executor(context.Background(), Request{Document: doc})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"__schema": map[string]any{"queryType": map[string]any{"name": "Query"}},
		"__type":   map[string]any{"kind": "OBJECT", "name": "User"},
	}, res.Data)
}
