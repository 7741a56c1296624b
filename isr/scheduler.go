package isr

import (
	"context"
	"time"
)

// Scheduler submits background work that must survive past the response
// boundary. Edge runtimes expose a "continue after response" hook; adapters
// wrap it in this interface. Task outcomes are best-effort: the engine logs
// failures and never propagates them.
//
// Contract:
// - Schedule must not block the caller on task completion.
// - The context passed to the task bounds its lifetime; tasks must tolerate
//   abrupt cancellation.
type Scheduler interface {
	Schedule(task func(ctx context.Context))
}

// GoScheduler runs tasks on plain goroutines detached from the request
// context, each bounded by Budget. It is the default for hosts without a
// post-response task mechanism.
type GoScheduler struct {
	// Budget bounds each task's lifetime. Zero means DefaultTaskBudget.
	Budget time.Duration
}

// DefaultTaskBudget bounds background tasks when no budget is configured.
const DefaultTaskBudget = 30 * time.Second

// Schedule runs task on a new goroutine with a bounded context.
func (s GoScheduler) Schedule(task func(ctx context.Context)) {
	budget := s.Budget
	if budget <= 0 {
		budget = DefaultTaskBudget
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		task(ctx)
	}()
}

// Ensure GoScheduler implements Scheduler
var _ Scheduler = GoScheduler{}
