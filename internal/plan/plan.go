// Package plan compiles an operation's selection set into a field plan:
// per-subschema sub-queries plus a recursive tree of stitch plans
// describing how to resolve fields that belong to a different subschema
// than the one their parent object was fetched from.
package plan

import (
	language "github.com/BigSchema/stitch/internal/language"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// TypenameAlias is the response key under which the planner fetches
// __typename so the composer can discover the concrete type of a parent
// object that will need follow-up fetches.
const TypenameAlias = "__stitching__typename"

// FieldPlan is the immutable plan for resolving a set of field nodes at a
// particular parent type.
type FieldPlan struct {
	// SubschemaPlans lists the fetches to perform, in planning order.
	SubschemaPlans []*SubschemaPlan

	// StitchPlans maps a response key to follow-up plans for data that is
	// already produced by the originating fetch.
	StitchPlans map[string]*StitchPlan
}

// Empty reports whether the plan performs no fetches and implies none.
func (p *FieldPlan) Empty() bool {
	return len(p.SubschemaPlans) == 0 && len(p.StitchPlans) == 0
}

// SubschemaPlan is one fetch to one subschema as part of a FieldPlan.
type SubschemaPlan struct {
	// Subschema is the target of the fetch.
	Subschema *superschema.Subschema

	// From is the subschema whose result contained the parent object when
	// this plan sits at a follow-up position; nil at the top level.
	From *superschema.Subschema

	// FieldNodes is the selection set sent to the subschema.
	FieldNodes []*language.Field

	// StitchPlans maps a response key in this fetch's result to its
	// follow-up plans.
	StitchPlans map[string]*StitchPlan
}

// StitchPlan is the per-concrete-type dispatch table consulted once the
// runtime type of a value is known.
type StitchPlan struct {
	Plans map[string]*FieldPlan
}

func newFieldPlan() *FieldPlan {
	return &FieldPlan{StitchPlans: map[string]*StitchPlan{}}
}

func responseKey(field *language.Field) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}
