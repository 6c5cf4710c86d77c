package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// copyConcurrency is the sliding window of in-flight file copies.
	copyConcurrency = 4

	// folderConcurrency is the sliding window of in-flight disc coordinators.
	folderConcurrency = 5
)

var defaultRetryPolicy = &temporal.RetryPolicy{
	InitialInterval:    5 * time.Second,
	BackoffCoefficient: 2.0,
	MaximumAttempts:    3,
	NonRetryableErrorTypes: []string{
		errTypeValidation,
		errTypeConfiguration,
		errTypeNotFound,
	},
}

// withDefaultActivityOptions covers the quick filesystem and catalogue
// activities.
func withDefaultActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         defaultRetryPolicy,
	})
}

// withCopyActivityOptions covers long-running file transfers. The heartbeat
// timeout is four beacon intervals so a slow filesystem does not look dead.
func withCopyActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         defaultRetryPolicy,
	})
}

// withToolActivityOptions covers external tool invocations (subtitle
// extraction).
func withToolActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy:         defaultRetryPolicy,
	})
}

// withMatchActivityOptions covers the episode-matching model call.
func withMatchActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         defaultRetryPolicy,
	})
}
