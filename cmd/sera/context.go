package main

import (
	"fmt"

	"go.temporal.io/sdk/client"

	"sera/internal/config"
)

// commandContext lazily loads configuration and dials the Temporal service
// once per invocation.
type commandContext struct {
	cfg *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) withClient(fn func(cfg *config.Config, cl client.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cl, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connect to temporal at %s: %w", cfg.Temporal.Address, err)
	}
	defer cl.Close()
	return fn(cfg, cl)
}

// discWorkflowID derives a disc coordinator's workflow ID from its parent
// run and folder name.
func discWorkflowID(runID, folderName string) string {
	return fmt.Sprintf("%s-%s", runID, folderName)
}
