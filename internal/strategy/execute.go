package strategy

import (
	"context"
	"errors"
	"fmt"

	"harvestcart/internal/metrics"
)

var (
	ErrPlanMismatch = errors.New("plan kind does not match data type policy")
	ErrInvalidPlan  = errors.New("invalid plan")
	ErrPanic        = errors.New("operation panicked")
)

// State is the terminal state of one Execute call.
type State string

const (
	Confirmed  State = "confirmed"   // optimistic, server accepted
	RolledBack State = "rolled_back" // optimistic, server refused
	Committed  State = "committed"   // pessimistic, server accepted
	Rejected   State = "rejected"    // pessimistic, server refused
	Invalid    State = "invalid"     // plan refused before the operation ran
)

// Operation is the network call being wrapped. It is invoked at most once.
type Operation[T any] func(ctx context.Context) (T, error)

// Plan is either an OptimisticPlan or a PessimisticPlan.
type Plan[T any] interface {
	Policy() Policy
	validate() error
}

// OptimisticPlan applies the change up front. OnRollback must fully undo
// OnOptimisticUpdate regardless of how long the operation took.
type OptimisticPlan[T any] struct {
	OnOptimisticUpdate func()
	OnRollback         func()
	OnSuccess          func(T)
	OnError            func(error)
}

func (OptimisticPlan[T]) Policy() Policy { return Optimistic }

func (p OptimisticPlan[T]) validate() error {
	if p.OnOptimisticUpdate != nil && p.OnRollback == nil {
		return fmt.Errorf("%w: optimistic update without rollback", ErrInvalidPlan)
	}
	return nil
}

// PessimisticPlan touches client state only in OnSuccess.
type PessimisticPlan[T any] struct {
	OnPending func()
	OnSuccess func(T)
	OnError   func(error)
}

func (PessimisticPlan[T]) Policy() Policy { return Pessimistic }

func (PessimisticPlan[T]) validate() error { return nil }

// Result is what Execute resolves to. It never carries a panic.
type Result[T any] struct {
	Success bool
	Value   T
	Err     error
	State   State
}

// Execute runs op under the policy registered for dataType. It never panics and
// never returns an error separately: every outcome is in the Result.
func Execute[T any](ctx context.Context, r *Registry, dataType string, op Operation[T], plan Plan[T]) (res Result[T]) {
	policy := Pessimistic
	defer func() {
		if rec := recover(); rec != nil {
			res = Result[T]{Err: fmt.Errorf("%w: %v", ErrPanic, rec), State: Invalid}
		}
		metrics.StrategyExecutions.WithLabelValues(dataType, string(policy), string(res.State)).Inc()
	}()
	policy = r.Strategy(dataType)

	if plan == nil || op == nil {
		return Result[T]{Err: fmt.Errorf("%w: nil plan or operation", ErrInvalidPlan), State: Invalid}
	}
	if plan.Policy() != policy {
		return Result[T]{Err: fmt.Errorf("%w: %s is %s, plan is %s", ErrPlanMismatch, dataType, policy, plan.Policy()), State: Invalid}
	}
	if err := plan.validate(); err != nil {
		return Result[T]{Err: err, State: Invalid}
	}

	switch p := plan.(type) {
	case OptimisticPlan[T]:
		return runOptimistic(ctx, op, p)
	case *OptimisticPlan[T]:
		return runOptimistic(ctx, op, *p)
	case PessimisticPlan[T]:
		return runPessimistic(ctx, op, p)
	case *PessimisticPlan[T]:
		return runPessimistic(ctx, op, *p)
	}
	return Result[T]{Err: fmt.Errorf("%w: unsupported plan type %T", ErrInvalidPlan, plan), State: Invalid}
}

func runOptimistic[T any](ctx context.Context, op Operation[T], p OptimisticPlan[T]) Result[T] {
	if p.OnOptimisticUpdate != nil {
		p.OnOptimisticUpdate()
	}
	v, err := call(ctx, op)
	if err != nil {
		if p.OnRollback != nil {
			p.OnRollback()
		}
		if p.OnError != nil {
			p.OnError(err)
		}
		return Result[T]{Err: err, State: RolledBack}
	}
	if p.OnSuccess != nil {
		p.OnSuccess(v)
	}
	return Result[T]{Success: true, Value: v, State: Confirmed}
}

func runPessimistic[T any](ctx context.Context, op Operation[T], p PessimisticPlan[T]) Result[T] {
	if p.OnPending != nil {
		p.OnPending()
	}
	v, err := call(ctx, op)
	if err != nil {
		if p.OnError != nil {
			p.OnError(err)
		}
		return Result[T]{Err: err, State: Rejected}
	}
	if p.OnSuccess != nil {
		p.OnSuccess(v)
	}
	return Result[T]{Success: true, Value: v, State: Committed}
}

// call runs op once, turning a panic into an error so the rollback path runs.
func call[T any](ctx context.Context, op Operation[T]) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return op(ctx)
}
