package validation

import (
	"context"

	"github.com/okian/trajguard/internal/domain/verdict"
)

// Chain evaluates validators in a fixed order.
type Chain struct {
	validators []Validator
}

// NewChain keeps the given order. Nil validators are skipped.
func NewChain(validators ...Validator) *Chain {
	c := &Chain{}
	for _, v := range validators {
		if v != nil {
			c.validators = append(c.validators, v)
		}
	}
	return c
}

// Validators returns the validators in evaluation order.
func (c *Chain) Validators() []Validator {
	out := make([]Validator, len(c.validators))
	copy(out, c.validators)
	return out
}

// Reset resets every validator, enabled or not.
func (c *Chain) Reset(ctx context.Context, t0 *float64) {
	for _, v := range c.validators {
		v.Reset(ctx, t0)
	}
}

// Update feeds the sample to validators in order and returns the first failure.
// Validators after the failing one do not see the sample.
func (c *Chain) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
	for _, v := range c.validators {
		res, err := v.Update(ctx, x, y, t)
		if err != nil {
			return verdict.Pass(), err
		}
		if res.Failed() {
			return res, nil
		}
	}
	return verdict.Pass(), nil
}

// UpdateAll feeds the sample to every validator and returns all failures in
// order.
func (c *Chain) UpdateAll(ctx context.Context, x, y, t float64) ([]verdict.Verdict, error) {
	var failures []verdict.Verdict
	for _, v := range c.validators {
		res, err := v.Update(ctx, x, y, t)
		if err != nil {
			return failures, err
		}
		if res.Failed() {
			failures = append(failures, res)
		}
	}
	return failures, nil
}
