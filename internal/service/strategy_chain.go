package service

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one way of producing a T. Strategies in a chain are tried in
// order until one returns without error.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// StrategyChain runs strategies in order and reports which one answered.
type StrategyChain[T any] struct {
	strategies []Strategy[T]
}

func NewStrategyChain[T any](strategies ...Strategy[T]) *StrategyChain[T] {
	return &StrategyChain[T]{strategies: strategies}
}

// Run returns the first successful result and the name of the strategy that
// produced it. When every strategy fails the errors are joined in order.
func (c *StrategyChain[T]) Run(ctx context.Context) (T, string, error) {
	var zero T
	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := s.Run(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	if len(errs) == 0 {
		return zero, "", errors.New("strategy chain is empty")
	}
	return zero, "", errors.Join(errs...)
}
