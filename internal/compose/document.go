package compose

import (
	language "github.com/BigSchema/stitch/internal/language"
)

// buildDocument reconstructs a single-operation outgoing document: the
// original operation header verbatim, a selection set equal to the plan's
// field nodes, and all fragment definitions from the original document.
func buildDocument(
	op *language.OperationDefinition,
	fieldNodes []*language.Field,
	fragments language.FragmentDefinitionList,
) *language.QueryDocument {
	selections := make(language.SelectionSet, len(fieldNodes))
	for i, field := range fieldNodes {
		selections[i] = field
	}
	outgoing := &language.OperationDefinition{
		Operation:           op.Operation,
		Name:                op.Name,
		VariableDefinitions: op.VariableDefinitions,
		Directives:          op.Directives,
		SelectionSet:        selections,
	}
	return &language.QueryDocument{
		Operations: language.OperationList{outgoing},
		Fragments:  fragments,
	}
}
