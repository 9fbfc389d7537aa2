package compose

import (
	"context"
	"fmt"
	"strings"
	"testing"

	language "github.com/BigSchema/stitch/internal/language"
	plan "github.com/BigSchema/stitch/internal/plan"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCompose_SingleSubschemaPassthrough(t *testing.T) {
	mockA := newMockSubschema(t, "A", `type Query { a: Int }`, dataResolver(map[string]any{"a": 1}))
	mockB := newMockSubschema(t, "B", `type Query { b: Int }`, dataResolver(map[string]any{"b": 2}))

	res := composeQuery(t, `{ a }`, nil, mockA, mockB)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"a": 1}, res.Data)
	require.Equal(t, 1, mockA.callCount())
	require.Equal(t, 0, mockB.callCount())
}

func TestCompose_CrossSubschemaMerge(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`, dataResolver(map[string]any{
		"user": map[string]any{"name": "x", plan.TypenameAlias: "User"},
	}))
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, dataResolver(map[string]any{"email": "y"}))

	res := composeQuery(t, `{ user { name email } }`, nil, mockA, mockB)

	require.Empty(t, res.Errors)
	want := map[string]any{"user": map[string]any{"name": "x", "email": "y"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, mockA.callCount())
	require.Contains(t, mockA.queries[0], "__stitching__typename: __typename")
	require.Equal(t, 1, mockB.callCount())
	require.Contains(t, mockB.queries[0], "email")
	require.NotContains(t, mockB.queries[0], "name")
}

func TestCompose_AbstractStitchingPicksArmByRuntimeType(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { node(id: ID): Node }
		interface Node { id: ID }
		type User implements Node { id: ID name: String }
		type Post implements Node { id: ID title: String }
	`, dataResolver(map[string]any{
		"node": map[string]any{"name": "x", plan.TypenameAlias: "User"},
	}))
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, dataResolver(map[string]any{"email": "y"}))

	res := composeQuery(t, `{ node(id: "1") { ... on User { name email } } }`, nil, mockA, mockB)

	require.Empty(t, res.Errors)
	want := map[string]any{"node": map[string]any{"name": "x", "email": "y"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_StitchedArrayMixedConcreteTypes(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { feed: [Node] }
		interface Node { id: ID }
		type User implements Node { id: ID name: String }
		type Post implements Node { id: ID title: String }
	`, dataResolver(map[string]any{
		"feed": []any{
			map[string]any{"name": "u1", plan.TypenameAlias: "User"},
			map[string]any{"title": "p1", plan.TypenameAlias: "Post"},
			nil,
		},
	}))
	// Answer per requested field: each element's follow-up asks either for
	// email (User) or likes (Post).
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
		type Post { id: ID likes: Int }
	`, func(req superschema.Request) (*result.Result, error) {
		if strings.Contains(rootFieldNames(req), "email") {
			return &result.Result{Data: map[string]any{"email": "u1@e"}}, nil
		}
		return &result.Result{Data: map[string]any{"likes": 3}}, nil
	})

	res := composeQuery(t, `{ feed { ... on User { name email } ... on Post { title likes } } }`, nil, mockA, mockB)

	require.Empty(t, res.Errors)
	want := map[string]any{"feed": []any{
		map[string]any{"name": "u1", "email": "u1@e"},
		map[string]any{"title": "p1", "likes": 3},
		nil,
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_NullLeafDoesNotBlockSiblingMerge(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`, dataResolver(map[string]any{
		"user": map[string]any{"name": nil, plan.TypenameAlias: "User"},
	}))
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, dataResolver(map[string]any{"email": "e"}))

	res := composeQuery(t, `{ user { name email } }`, nil, mockA, mockB)

	require.Empty(t, res.Errors)
	want := map[string]any{"user": map[string]any{"name": nil, "email": "e"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_RootDataNullNullsResponseAndKeepsErrors(t *testing.T) {
	mockA := newMockSubschema(t, "A", `type Query { a: Int }`, func(superschema.Request) (*result.Result, error) {
		return &result.Result{
			Data:   nil,
			Errors: []*result.Error{result.NewError("boom", nil)},
		}, nil
	})

	res := composeQuery(t, `{ a }`, nil, mockA)

	require.True(t, res.Nulled)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "boom", res.Errors[0].Message)
}

func TestCompose_NulledSlotShortCircuitsFollowUps(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`, dataResolver(map[string]any{
		"user": map[string]any{"name": "x", plan.TypenameAlias: "User"},
	}))
	// B's follow-up returns data null, nulling the user slot.
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, func(superschema.Request) (*result.Result, error) {
		return &result.Result{Data: nil, Errors: []*result.Error{result.NewError("b down", nil)}}, nil
	})

	res := composeQuery(t, `{ user { name email } }`, nil, mockA, mockB)

	require.Len(t, res.Errors, 1)
	want := map[string]any{"user": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_ExecutorRejectionBecomesErrorWithNullSlot(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`, dataResolver(map[string]any{
		"user": map[string]any{"name": "x", plan.TypenameAlias: "User"},
	}))
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, func(superschema.Request) (*result.Result, error) {
		return nil, fmt.Errorf("connection refused")
	})

	res := composeQuery(t, `{ user { name email } }`, nil, mockA, mockB)

	require.Len(t, res.Errors, 1)
	require.Equal(t, "connection refused", res.Errors[0].Message)
	require.ErrorContains(t, res.Errors[0].Err, "connection refused")
	want := map[string]any{"user": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_MissingTypenameMarkerIsInternalError(t *testing.T) {
	mockA := newMockSubschema(t, "A", `
		type Query { user: User }
		type User { id: ID name: String }
	`, dataResolver(map[string]any{
		"user": map[string]any{"name": "x"},
	}))
	mockB := newMockSubschema(t, "B", `
		type Query { ping: Int }
		type User { id: ID email: String }
	`, dataResolver(map[string]any{"email": "y"}))

	res := composeQuery(t, `{ user { name email } }`, nil, mockA, mockB)

	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "internal error")
	require.Equal(t, 0, mockB.callCount())
}

func TestCompose_DeterministicAcrossComposers(t *testing.T) {
	newMocks := func() []*mockSubschema {
		mockA := newMockSubschema(t, "A", `
			type Query { user: User }
			type User { id: ID name: String }
		`, dataResolver(map[string]any{
			"user": map[string]any{"name": "x", plan.TypenameAlias: "User"},
		}))
		mockB := newMockSubschema(t, "B", `
			type Query { ping: Int }
			type User { id: ID email: String }
		`, dataResolver(map[string]any{"email": "y"}))
		return []*mockSubschema{mockA, mockB}
	}

	first := composeQuery(t, `{ user { name email } }`, nil, newMocks()...)
	second := composeQuery(t, `{ user { name email } }`, nil, newMocks()...)
	if diff := cmp.Diff(first.Data, second.Data); diff != "" {
		t.Fatalf("compose is not deterministic (-first +second):\n%s", diff)
	}
}

func TestCompose_IncrementalResultFeedsConsolidator(t *testing.T) {
	payloads := []*result.Payload{
		{Incremental: []any{map[string]any{"data": map[string]any{"deferred": 1}}}, HasNext: true},
		{HasNext: false},
	}
	mockA := newMockSubschema(t, "A", `type Query { a: Int }`, func(superschema.Request) (*result.Result, error) {
		return &result.Result{
			Initial:    &result.Initial{Data: map[string]any{"a": 1}, HasNext: true},
			Subsequent: newSliceStream(payloads),
		}, nil
	})

	res := composeQuery(t, `{ a }`, nil, mockA)

	require.NotNil(t, res.Initial)
	require.True(t, res.Initial.HasNext)
	require.Equal(t, map[string]any{"a": 1}, res.Initial.Data)
	require.NotNil(t, res.Subsequent)

	ctx := context.Background()
	var got []*result.Payload
	for {
		p, done, err := res.Subsequent.Next(ctx)
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, p)
	}
	require.Len(t, got, 2)
	require.True(t, got[0].HasNext)
	require.False(t, got[1].HasNext)
}

func rootFieldNames(req superschema.Request) string {
	var names []string
	for _, sel := range req.Document.Operations[0].SelectionSet {
		if f, ok := sel.(*language.Field); ok {
			names = append(names, f.Name)
		}
	}
	return strings.Join(names, " ")
}
