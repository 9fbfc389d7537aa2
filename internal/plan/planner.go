package plan

import (
	"encoding/json"
	"fmt"
	"sync"

	language "github.com/BigSchema/stitch/internal/language"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// planCache memoises root plans on (super-schema, operation, variable
// values). Entries are append-only and safe to share.
var planCache sync.Map

type planCacheKey struct {
	superSchema *superschema.SuperSchema
	operation   *language.OperationDefinition
	variables   string
}

type planCacheEntry struct {
	plan *FieldPlan
	err  error
}

// Plan compiles the operation into a FieldPlan. The operation's @skip and
// @include directives are resolved against the coerced variables and its
// fragment spreads inlined before splitting. An operation kind with no
// root type is an error.
func Plan(
	ss *superschema.SuperSchema,
	doc *language.QueryDocument,
	op *language.OperationDefinition,
	variables map[string]any,
) (*FieldPlan, error) {
	key := planCacheKey{superSchema: ss, operation: op, variables: fingerprint(variables)}
	if cached, ok := planCache.Load(key); ok {
		entry := cached.(planCacheEntry)
		return entry.plan, entry.err
	}

	fieldPlan, err := plan(ss, doc, op, variables)
	planCache.Store(key, planCacheEntry{plan: fieldPlan, err: err})
	return fieldPlan, err
}

func plan(
	ss *superschema.SuperSchema,
	doc *language.QueryDocument,
	op *language.OperationDefinition,
	variables map[string]any,
) (*FieldPlan, error) {
	rootType := ss.GetRootType(op.Operation)
	if rootType == nil {
		return nil, fmt.Errorf("schema is not configured to execute %s operation", op.Operation)
	}

	rewritten, err := ApplyDirectives(op, doc.Fragments, variables)
	if err != nil {
		return nil, err
	}

	p := &planner{
		ss:         ss,
		fieldPlans: map[fieldPlanKey]*FieldPlan{},
		collected:  map[collectKey][]*language.Field{},
	}
	fieldNodes, err := p.collectFields(rootType, rewritten.SelectionSet)
	if err != nil {
		return nil, err
	}
	return p.createFieldPlan(rootType, fieldNodes, nil)
}

// fingerprint produces a stable key for a variable-value map. JSON object
// keys are emitted sorted, so equal maps collide.
func fingerprint(variables map[string]any) string {
	if len(variables) == 0 {
		return ""
	}
	b, err := json.Marshal(variables)
	if err != nil {
		return fmt.Sprintf("%v", variables)
	}
	return string(b)
}

type planner struct {
	ss *superschema.SuperSchema

	fieldPlans map[fieldPlanKey]*FieldPlan
	collected  map[collectKey][]*language.Field
}

type fieldPlanKey struct {
	parentType *language.Definition
	first      *language.Field
	count      int
	from       *superschema.Subschema
}

type collectKey struct {
	parentType *language.Definition
	first      language.Selection
	count      int
}

// collectFields flattens the selection set into its effective field nodes
// at the given type. Inline fragments whose type condition is satisfied
// are expanded in place; fragment spreads must have been inlined upstream.
func (p *planner) collectFields(parentType *language.Definition, selections language.SelectionSet) ([]*language.Field, error) {
	key := collectKey{parentType: parentType, count: len(selections)}
	if len(selections) > 0 {
		key.first = selections[0]
	}
	if cached, ok := p.collected[key]; ok {
		return cached, nil
	}

	var fields []*language.Field
	for _, sel := range selections {
		switch s := sel.(type) {
		case *language.Field:
			fields = append(fields, s)
		case *language.InlineFragment:
			if s.TypeCondition != "" {
				cond := p.ss.GetType(s.TypeCondition)
				if cond == nil || !p.ss.IsSubType(cond, parentType) {
					continue
				}
			}
			nested, err := p.collectFields(parentType, s.SelectionSet)
			if err != nil {
				return nil, err
			}
			fields = append(fields, nested...)
		case *language.FragmentSpread:
			return nil, fmt.Errorf("fragment spread %q must be inlined before planning", s.Name)
		}
	}
	p.collected[key] = fields
	return fields, nil
}

func (p *planner) createFieldPlan(
	parentType *language.Definition,
	fieldNodes []*language.Field,
	from *superschema.Subschema,
) (*FieldPlan, error) {
	key := fieldPlanKey{parentType: parentType, count: len(fieldNodes), from: from}
	if len(fieldNodes) > 0 {
		key.first = fieldNodes[0]
	}
	if cached, ok := p.fieldPlans[key]; ok {
		return cached, nil
	}

	fieldPlan := newFieldPlan()
	for _, field := range fieldNodes {
		if err := p.addField(fieldPlan, from, parentType, field); err != nil {
			return nil, err
		}
	}
	p.fieldPlans[key] = fieldPlan
	return fieldPlan, nil
}

func (p *planner) addField(
	fieldPlan *FieldPlan,
	from *superschema.Subschema,
	parentType *language.Definition,
	field *language.Field,
) error {
	candidates := p.ss.SubschemaSets[parentType.Name][field.Name]
	if len(candidates) == 0 {
		return nil
	}

	if len(field.SelectionSet) == 0 {
		sub := p.pickSubschema(fieldPlan, candidates, from)
		sp := getOrCreateSubschemaPlan(fieldPlan, sub, from)
		sp.FieldNodes = append(sp.FieldNodes, field)
		return nil
	}

	fieldDef := p.ss.GetFieldDef(parentType, field.Name)
	if fieldDef == nil {
		return nil
	}
	namedType := p.ss.GetType(fieldDef.Type.Name())
	if namedType == nil {
		return nil
	}

	sub := p.pickSubschema(fieldPlan, candidates, from)
	own, other, err := p.splitSelections(sub, from, namedType, field.SelectionSet)
	if err != nil {
		return err
	}
	stitch, err := p.createStitchPlan(namedType, other, sub)
	if err != nil {
		return err
	}

	key := responseKey(field)
	if len(own) > 0 {
		sp := getOrCreateSubschemaPlan(fieldPlan, sub, from)
		clone := *field
		clone.SelectionSet = own
		sp.FieldNodes = append(sp.FieldNodes, &clone)
		if stitch != nil {
			if sub == from {
				fieldPlan.StitchPlans[key] = stitch
			} else {
				sp.StitchPlans[key] = stitch
			}
		}
		return nil
	}
	if stitch != nil {
		if sub == from {
			fieldPlan.StitchPlans[key] = stitch
		} else {
			sp := getOrCreateSubschemaPlan(fieldPlan, sub, from)
			sp.StitchPlans[key] = stitch
		}
	}
	return nil
}

// pickSubschema prefers from when it is among the candidates, then a
// candidate that already has an entry in the plan, then the first
// candidate.
func (p *planner) pickSubschema(
	fieldPlan *FieldPlan,
	candidates []*superschema.Subschema,
	from *superschema.Subschema,
) *superschema.Subschema {
	if from != nil {
		for _, c := range candidates {
			if c == from {
				return from
			}
		}
	}
	for _, c := range candidates {
		for _, sp := range fieldPlan.SubschemaPlans {
			if sp.Subschema == c {
				return c
			}
		}
	}
	return candidates[0]
}

func getOrCreateSubschemaPlan(
	fieldPlan *FieldPlan,
	sub *superschema.Subschema,
	from *superschema.Subschema,
) *SubschemaPlan {
	for _, sp := range fieldPlan.SubschemaPlans {
		if sp.Subschema == sub {
			return sp
		}
	}
	sp := &SubschemaPlan{
		Subschema:   sub,
		From:        from,
		StitchPlans: map[string]*StitchPlan{},
	}
	fieldPlan.SubschemaPlans = append(fieldPlan.SubschemaPlans, sp)
	return sp
}

// splitSelections classifies a selection set into the selections the given
// subschema can resolve and those that must be fetched elsewhere. At every
// top-level split (from == nil) whose other half is non-empty, the
// __stitching__typename marker is prepended to the own half.
func (p *planner) splitSelections(
	sub *superschema.Subschema,
	from *superschema.Subschema,
	parentType *language.Definition,
	selections language.SelectionSet,
) (own, other language.SelectionSet, err error) {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *language.Field:
			candidates := p.ss.SubschemaSets[parentType.Name][s.Name]
			if !containsSubschema(candidates, sub) {
				other = append(other, s)
				continue
			}
			if len(s.SelectionSet) == 0 {
				own = append(own, s)
				continue
			}
			fieldDef := p.ss.GetFieldDef(parentType, s.Name)
			if fieldDef == nil {
				continue
			}
			namedType := p.ss.GetType(fieldDef.Type.Name())
			if namedType == nil {
				continue
			}
			subOwn, subOther, serr := p.splitSelections(sub, from, namedType, s.SelectionSet)
			if serr != nil {
				return nil, nil, serr
			}
			if len(subOwn) > 0 {
				clone := *s
				clone.SelectionSet = subOwn
				own = append(own, &clone)
			}
			if len(subOther) > 0 {
				clone := *s
				clone.SelectionSet = subOther
				other = append(other, &clone)
			}
		case *language.InlineFragment:
			refined := parentType
			if s.TypeCondition != "" {
				if cond := p.ss.GetType(s.TypeCondition); cond != nil {
					refined = cond
				}
			}
			subOwn, subOther, serr := p.splitSelections(sub, from, refined, s.SelectionSet)
			if serr != nil {
				return nil, nil, serr
			}
			if len(subOwn) > 0 {
				clone := *s
				clone.SelectionSet = subOwn
				own = append(own, &clone)
			}
			if len(subOther) > 0 {
				clone := *s
				clone.SelectionSet = subOther
				other = append(other, &clone)
			}
		case *language.FragmentSpread:
			return nil, nil, fmt.Errorf("fragment spread %q must be inlined before planning", s.Name)
		}
	}
	if from == nil && len(other) > 0 {
		own = append(language.SelectionSet{typenameMarkerField()}, own...)
	}
	return own, other, nil
}

func typenameMarkerField() *language.Field {
	return &language.Field{Alias: TypenameAlias, Name: "__typename"}
}

// createStitchPlan builds the per-runtime-type dispatch table for the
// selections the chosen subschema cannot resolve. Types whose supplemental
// plan is empty are omitted; an entirely empty table yields nil.
func (p *planner) createStitchPlan(
	namedType *language.Definition,
	otherSelections language.SelectionSet,
	from *superschema.Subschema,
) (*StitchPlan, error) {
	if len(otherSelections) == 0 {
		return nil, nil
	}
	possibleTypes := p.ss.GetPossibleTypes(namedType)
	plans := map[string]*FieldPlan{}
	for _, t := range possibleTypes {
		fieldNodes, err := p.collectFields(t, otherSelections)
		if err != nil {
			return nil, err
		}
		supplemental, err := p.createFieldPlan(t, fieldNodes, from)
		if err != nil {
			return nil, err
		}
		if !supplemental.Empty() {
			plans[t.Name] = supplemental
		}
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &StitchPlan{Plans: plans}, nil
}

func containsSubschema(set []*superschema.Subschema, sub *superschema.Subschema) bool {
	for _, s := range set {
		if s == sub {
			return true
		}
	}
	return false
}
