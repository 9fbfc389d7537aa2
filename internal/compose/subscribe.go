package compose

import (
	"context"

	plan "github.com/BigSchema/stitch/internal/plan"
	result "github.com/BigSchema/stitch/internal/result"
	superschema "github.com/BigSchema/stitch/internal/superschema"
)

// Subscribe invokes the single chosen subschema's subscriber and returns
// its event stream with every event routed through a fresh single-use
// composer, so follow-up stitching applies per event. A non-nil error
// result means the subscription could not be established.
func (c *Composer) Subscribe(ctx context.Context) (result.ResultStream, *result.Result) {
	if len(c.fieldPlan.SubschemaPlans) == 0 {
		return nil, &result.Result{Errors: []*result.Error{
			result.NewError("Schema is not configured to execute subscription operation.", nil),
		}}
	}
	sp := c.fieldPlan.SubschemaPlans[0]
	if sp.Subschema.Subscriber == nil {
		return nil, &result.Result{Errors: []*result.Error{
			result.NewError("Subschema is not configured to execute subscription operation.", nil),
		}}
	}

	doc := buildDocument(c.operation, sp.FieldNodes, c.fragments)
	src, err := sp.Subschema.Subscriber(ctx, superschema.Request{Document: doc, Variables: c.rawVariables})
	if err != nil {
		return nil, &result.Result{Errors: []*result.Error{result.WrapError(err.Error(), err)}}
	}

	return &subscriptionStream{parent: c, subschemaPlan: sp, src: src}, nil
}

// subscriptionStream maps each upstream event through stitching.
type subscriptionStream struct {
	parent        *Composer
	subschemaPlan *plan.SubschemaPlan
	src           result.ResultStream
}

func (s *subscriptionStream) Next(ctx context.Context) (*result.Result, bool, error) {
	res, done, err := s.src.Next(ctx)
	if err != nil || done {
		return res, done, err
	}
	return s.composeEvent(ctx, res), false, nil
}

func (s *subscriptionStream) Return() error {
	return s.src.Return()
}

// composeEvent merges one subscription event and expands its follow-up
// fetches with a fresh single-use composer.
func (s *subscriptionStream) composeEvent(ctx context.Context, res *result.Result) *result.Result {
	c := New(s.parent.superSchema, s.parent.fieldPlan, s.parent.operation, s.parent.fragments, s.parent.rawVariables)
	c.handle(ctx, dispatched{
		res:         res,
		fields:      c.data,
		stitchPlans: s.subschemaPlan.StitchPlans,
	})
	c.drain(ctx)
	return c.finish()
}
