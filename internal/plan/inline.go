package plan

import (
	"fmt"

	language "github.com/BigSchema/stitch/internal/language"
)

// ApplyDirectives returns a copy of the operation's selection set with
// @skip and @include resolved against the coerced variables and every
// fragment spread replaced by an inline fragment carrying the fragment's
// type condition. The input operation is not modified.
func ApplyDirectives(
	op *language.OperationDefinition,
	fragments language.FragmentDefinitionList,
	variables map[string]any,
) (*language.OperationDefinition, error) {
	selections, err := rewriteSelectionSet(op.SelectionSet, fragments, variables)
	if err != nil {
		return nil, err
	}
	rewritten := *op
	rewritten.SelectionSet = selections
	return &rewritten, nil
}

func rewriteSelectionSet(
	selections language.SelectionSet,
	fragments language.FragmentDefinitionList,
	variables map[string]any,
) (language.SelectionSet, error) {
	var out language.SelectionSet
	for _, sel := range selections {
		switch s := sel.(type) {
		case *language.Field:
			if !shouldInclude(s.Directives, variables) {
				continue
			}
			sub, err := rewriteSelectionSet(s.SelectionSet, fragments, variables)
			if err != nil {
				return nil, err
			}
			clone := *s
			clone.Directives = stripConditionals(s.Directives)
			clone.SelectionSet = sub
			out = append(out, &clone)
		case *language.InlineFragment:
			if !shouldInclude(s.Directives, variables) {
				continue
			}
			sub, err := rewriteSelectionSet(s.SelectionSet, fragments, variables)
			if err != nil {
				return nil, err
			}
			if len(sub) == 0 {
				continue
			}
			clone := *s
			clone.Directives = stripConditionals(s.Directives)
			clone.SelectionSet = sub
			out = append(out, &clone)
		case *language.FragmentSpread:
			if !shouldInclude(s.Directives, variables) {
				continue
			}
			frag := fragments.ForName(s.Name)
			if frag == nil {
				return nil, fmt.Errorf("unknown fragment %q", s.Name)
			}
			if !shouldInclude(frag.Directives, variables) {
				continue
			}
			sub, err := rewriteSelectionSet(frag.SelectionSet, fragments, variables)
			if err != nil {
				return nil, err
			}
			if len(sub) == 0 {
				continue
			}
			out = append(out, &language.InlineFragment{
				TypeCondition: frag.TypeCondition,
				SelectionSet:  sub,
			})
		}
	}
	return out, nil
}

// shouldInclude applies @skip and @include against the coerced variables.
func shouldInclude(directives language.DirectiveList, variables map[string]any) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if cond, ok := directiveIf(skip, variables); ok && cond {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if cond, ok := directiveIf(include, variables); ok && !cond {
			return false
		}
	}
	return true
}

func directiveIf(directive *language.Directive, variables map[string]any) (bool, bool) {
	arg := directive.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	cond, ok := language.ValueToGo(arg.Value, variables).(bool)
	return cond, ok
}

func stripConditionals(directives language.DirectiveList) language.DirectiveList {
	var out language.DirectiveList
	for _, d := range directives {
		if d.Name == "skip" || d.Name == "include" {
			continue
		}
		out = append(out, d)
	}
	return out
}
