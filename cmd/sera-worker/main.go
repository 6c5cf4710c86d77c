// Command sera-worker hosts the durable coordinators and their activities.
// It reads its configuration from the environment, connects to the Temporal
// service, and polls the task queue until interrupted.
package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"sera/internal/config"
	"sera/internal/logging"
	"sera/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("prepare media roots", logging.Error(err))
		os.Exit(1)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		logger.Error("connect to temporal",
			logging.String("address", cfg.Temporal.Address),
			logging.Error(err),
		)
		os.Exit(1)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.MaxConcurrentWorkflowTasks,
	})
	workflow.Register(w, workflow.NewActivities(cfg, logger))

	logger.Info("worker starting",
		logging.String("taskQueue", cfg.Temporal.TaskQueue),
		logging.String("address", cfg.Temporal.Address),
		logging.Int("maxActivities", cfg.Temporal.MaxConcurrentActivities),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped", logging.Error(err))
		os.Exit(1)
	}
}
