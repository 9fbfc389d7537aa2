package compose

import (
	"context"
	"fmt"

	language "github.com/BigSchema/stitch/internal/language"
	plan "github.com/BigSchema/stitch/internal/plan"
	result "github.com/BigSchema/stitch/internal/result"
	stream "github.com/BigSchema/stitch/internal/stream"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// Composer executes one FieldPlan. Instances are single-use: all mutable
// state is owned by the composer and only ever touched from the Compose
// loop, which is the single receiver of dispatched results.
type Composer struct {
	superSchema  *superschema.SuperSchema
	fieldPlan    *plan.FieldPlan
	operation    *language.OperationDefinition
	fragments    language.FragmentDefinitionList
	rawVariables map[string]any

	data   map[string]any
	errors []*result.Error
	nulled bool

	incoming chan dispatched
	inFlight int

	consolidator *stream.Consolidator[*result.Payload]
}

// dispatched carries one finished sub-fetch back into the compose loop
// together with the references needed to merge it.
type dispatched struct {
	res *result.Result
	err error

	// parent is the container holding the slot this fetch targets; nil for
	// a root-level fetch.
	parent any
	// fields is the object the fetched data merges into.
	fields map[string]any
	// stitchPlans are walked over fields once the data has merged.
	stitchPlans map[string]*plan.StitchPlan
	path        language.Path
}

// New creates a single-use composer for the given plan.
func New(
	ss *superschema.SuperSchema,
	fieldPlan *plan.FieldPlan,
	operation *language.OperationDefinition,
	fragments language.FragmentDefinitionList,
	rawVariables map[string]any,
) *Composer {
	return &Composer{
		superSchema:  ss,
		fieldPlan:    fieldPlan,
		operation:    operation,
		fragments:    fragments,
		rawVariables: rawVariables,
		data:         map[string]any{},
		incoming:     make(chan dispatched),
	}
}

// Compose dispatches every top-level subschema plan, merges results as
// they arrive, expands follow-up fetches until the stitch tree is
// exhausted, and returns the assembled response.
func (c *Composer) Compose(ctx context.Context) *result.Result {
	for _, sp := range c.fieldPlan.SubschemaPlans {
		c.dispatch(ctx, sp, nil, c.data, nil)
	}
	c.drain(ctx)
	return c.finish()
}

// dispatch launches one sub-fetch. Results are funneled into the compose
// loop; the goroutine never touches composer state.
func (c *Composer) dispatch(
	ctx context.Context,
	sp *plan.SubschemaPlan,
	parent any,
	fields map[string]any,
	path language.Path,
) {
	if len(sp.FieldNodes) == 0 {
		// A stitch-only plan entry carries no selections of its own.
		return
	}
	doc := buildDocument(c.operation, sp.FieldNodes, c.fragments)
	req := superschema.Request{Document: doc, Variables: c.rawVariables}
	c.inFlight++
	go func() {
		res, err := sp.Subschema.Executor(ctx, req)
		c.incoming <- dispatched{
			res:         res,
			err:         err,
			parent:      parent,
			fields:      fields,
			stitchPlans: sp.StitchPlans,
			path:        path,
		}
	}()
}

// drain is the join barrier: it completes once every dispatched fetch,
// including follow-ups enqueued along the way, has been handled.
func (c *Composer) drain(ctx context.Context) {
	for c.inFlight > 0 {
		d := <-c.incoming
		c.inFlight--
		c.handle(ctx, d)
	}
}

func (c *Composer) handle(ctx context.Context, d dispatched) {
	res := d.res
	if d.err != nil {
		// A rejected executor future becomes a single error with null data.
		res = &result.Result{
			Errors: []*result.Error{{
				Message: d.err.Error(),
				Path:    d.path,
				Err:     d.err,
			}},
		}
	}
	if res == nil {
		res = &result.Result{}
	}
	if res.Initial != nil {
		if res.Subsequent != nil {
			if c.consolidator == nil {
				c.consolidator = stream.NewConsolidator(func(p *result.Payload) (*result.Payload, bool) {
					return p, p != nil
				})
			}
			_ = c.consolidator.Add(res.Subsequent)
		}
		res = &result.Result{Data: res.Initial.Data, Errors: res.Initial.Errors}
	}
	c.handleResult(ctx, d, res)
}

func (c *Composer) handleResult(ctx context.Context, d dispatched, res *result.Result) {
	c.errors = append(c.errors, res.Errors...)

	// A slot nulled by a prior failure short-circuits later merges.
	if d.parent != nil {
		if slotIsNil(d.parent, d.path) {
			return
		}
	} else if c.nulled {
		return
	}

	if res.Data == nil {
		if len(d.path) == 0 {
			c.nulled = true
		} else {
			setSlotNil(d.parent, d.path)
		}
		return
	}

	for key, value := range res.Data {
		deepMerge(d.fields, key, value)
	}

	if len(d.stitchPlans) > 0 {
		c.walkStitchPlans(ctx, d.stitchPlans, d.fields, d.path)
	}
}

// walkStitchPlans finds the value for each stitch key in the merged data
// and enqueues its follow-up fetches.
func (c *Composer) walkStitchPlans(
	ctx context.Context,
	stitchPlans map[string]*plan.StitchPlan,
	fields map[string]any,
	path language.Path,
) {
	for key, sp := range stitchPlans {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		c.stitchValue(ctx, sp, fields, appendPath(path, language.PathName(key)), value)
	}
}

// stitchValue resolves the concrete runtime type of a value and dispatches
// the matching per-type plan. Arrays are walked elementwise.
func (c *Composer) stitchValue(
	ctx context.Context,
	sp *plan.StitchPlan,
	container any,
	path language.Path,
	value any,
) {
	switch v := value.(type) {
	case []any:
		for i, item := range v {
			if item == nil {
				continue
			}
			c.stitchValue(ctx, sp, v, appendPath(path, language.PathIndex(i)), item)
		}
	case map[string]any:
		typeName, ok := v[plan.TypenameAlias].(string)
		if !ok {
			c.internalError(fmt.Sprintf("expected %s in stitched object", plan.TypenameAlias), path)
			return
		}
		delete(v, plan.TypenameAlias)
		typeDef := c.superSchema.GetType(typeName)
		if typeDef == nil || typeDef.Kind != language.Object {
			c.internalError(fmt.Sprintf("value of %s must name an object type, got %q", plan.TypenameAlias, typeName), path)
			return
		}
		arm := sp.Plans[typeName]
		if arm == nil {
			// The planner omits types with nothing to fetch.
			return
		}
		for _, subPlan := range arm.SubschemaPlans {
			c.dispatch(ctx, subPlan, container, v, path)
		}
		if len(arm.StitchPlans) > 0 {
			c.walkStitchPlans(ctx, arm.StitchPlans, v, path)
		}
	default:
		c.internalError(fmt.Sprintf("cannot stitch non-object value %T", value), path)
	}
}

// internalError records an invariant violation as an internal failure.
func (c *Composer) internalError(message string, path language.Path) {
	c.errors = append(c.errors, result.NewError("internal error: "+message, path))
}

func (c *Composer) finish() *result.Result {
	if c.consolidator != nil {
		c.consolidator.Close()
		initial := &result.Initial{Errors: c.errors, HasNext: true}
		if !c.nulled {
			initial.Data = c.data
		}
		return &result.Result{Initial: initial, Subsequent: c.consolidator}
	}
	res := &result.Result{Errors: c.errors, Nulled: c.nulled}
	if !c.nulled {
		res.Data = c.data
	}
	return res
}

func appendPath(path language.Path, elem any) language.Path {
	out := make(language.Path, len(path)+1)
	copy(out, path)
	switch e := elem.(type) {
	case language.PathName:
		out[len(path)] = e
	case language.PathIndex:
		out[len(path)] = e
	}
	return out
}

// slotIsNil reports whether the slot addressed by the last path element
// has been explicitly nulled in its container.
func slotIsNil(container any, path language.Path) bool {
	if len(path) == 0 {
		return false
	}
	switch last := path[len(path)-1].(type) {
	case language.PathName:
		m, ok := container.(map[string]any)
		if !ok {
			return false
		}
		v, present := m[string(last)]
		return present && v == nil
	case language.PathIndex:
		s, ok := container.([]any)
		if !ok || int(last) >= len(s) {
			return false
		}
		return s[int(last)] == nil
	}
	return false
}

func setSlotNil(container any, path language.Path) {
	if len(path) == 0 {
		return
	}
	switch last := path[len(path)-1].(type) {
	case language.PathName:
		if m, ok := container.(map[string]any); ok {
			m[string(last)] = nil
		}
	case language.PathIndex:
		if s, ok := container.([]any); ok && int(last) < len(s) {
			s[int(last)] = nil
		}
	}
}
