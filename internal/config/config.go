package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Temporal contains connection settings for the durable-execution host.
type Temporal struct {
	Address                    string
	Namespace                  string
	TaskQueue                  string
	MaxConcurrentActivities    int
	MaxConcurrentWorkflowTasks int
}

// Media contains the four filesystem roots the pipeline moves files between.
type Media struct {
	InputRoot      string
	ProcessingRoot string
	StagingRoot    string
	OutputRoot     string
}

// Anthropic contains settings for the episode-matching LLM.
type Anthropic struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AniList contains settings for the anime catalogue client.
type AniList struct {
	BaseURL string
}

// Logging contains log output settings.
type Logging struct {
	Level  string
	Format string
}

// Config is the process-scoped immutable configuration snapshot. It is
// loaded once at startup from the environment; coordinators receive
// everything they need as workflow inputs.
type Config struct {
	Temporal  Temporal
	Media     Media
	Anthropic Anthropic
	AniList   AniList
	Logging   Logging
}

const (
	defaultTemporalAddress = "localhost:7233"
	defaultNamespace       = "default"
	defaultTaskQueue       = "SERA"
	defaultAniListBaseURL  = "https://graphql.anilist.co"
	defaultAnthropicURL    = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel  = "claude-3-5-haiku-latest"
)

var envKeys = map[string]any{
	"TEMPORAL_ADDRESS":              defaultTemporalAddress,
	"TEMPORAL_NAMESPACE":            defaultNamespace,
	"TEMPORAL_TASK_QUEUE":           defaultTaskQueue,
	"MAX_CONCURRENT_ACTIVITIES":     10,
	"MAX_CONCURRENT_WORKFLOW_TASKS": 10,
	"MEDIA_INPUT_ROOT":              "/mnt/media/input",
	"MEDIA_PROCESSING_ROOT":         "/mnt/media/processing",
	"MEDIA_STAGING_ROOT":            "/mnt/media/staging",
	"MEDIA_OUTPUT_ROOT":             "/mnt/media/output",
	"ANTHROPIC_API_KEY":             "",
	"ANTHROPIC_BASE_URL":            defaultAnthropicURL,
	"ANTHROPIC_MODEL":               defaultAnthropicModel,
	"ANILIST_BASE_URL":              defaultAniListBaseURL,
	"LOG_LEVEL":                     "info",
	"LOG_FORMAT":                    "console",
}

// Load reads configuration from the environment, applying defaults and
// validating the result.
func Load() (*Config, error) {
	v := viper.New()
	for key, def := range envKeys {
		v.SetDefault(key, def)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		Temporal: Temporal{
			Address:                    strings.TrimSpace(v.GetString("TEMPORAL_ADDRESS")),
			Namespace:                  strings.TrimSpace(v.GetString("TEMPORAL_NAMESPACE")),
			TaskQueue:                  strings.TrimSpace(v.GetString("TEMPORAL_TASK_QUEUE")),
			MaxConcurrentActivities:    v.GetInt("MAX_CONCURRENT_ACTIVITIES"),
			MaxConcurrentWorkflowTasks: v.GetInt("MAX_CONCURRENT_WORKFLOW_TASKS"),
		},
		Media: Media{
			InputRoot:      cleanRoot(v.GetString("MEDIA_INPUT_ROOT")),
			ProcessingRoot: cleanRoot(v.GetString("MEDIA_PROCESSING_ROOT")),
			StagingRoot:    cleanRoot(v.GetString("MEDIA_STAGING_ROOT")),
			OutputRoot:     cleanRoot(v.GetString("MEDIA_OUTPUT_ROOT")),
		},
		Anthropic: Anthropic{
			APIKey:  strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
			BaseURL: strings.TrimSpace(v.GetString("ANTHROPIC_BASE_URL")),
			Model:   strings.TrimSpace(v.GetString("ANTHROPIC_MODEL")),
		},
		AniList: AniList{
			BaseURL: strings.TrimSpace(v.GetString("ANILIST_BASE_URL")),
		},
		Logging: Logging{
			Level:  strings.TrimSpace(v.GetString("LOG_LEVEL")),
			Format: strings.TrimSpace(v.GetString("LOG_FORMAT")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside a workflow run.
func (c *Config) Validate() error {
	if c.Temporal.Address == "" {
		return errors.New("config: TEMPORAL_ADDRESS must not be empty")
	}
	if c.Temporal.TaskQueue == "" {
		return errors.New("config: TEMPORAL_TASK_QUEUE must not be empty")
	}
	if c.Temporal.MaxConcurrentActivities <= 0 {
		return errors.New("config: MAX_CONCURRENT_ACTIVITIES must be positive")
	}
	if c.Temporal.MaxConcurrentWorkflowTasks <= 0 {
		return errors.New("config: MAX_CONCURRENT_WORKFLOW_TASKS must be positive")
	}
	roots := map[string]string{
		"MEDIA_INPUT_ROOT":      c.Media.InputRoot,
		"MEDIA_PROCESSING_ROOT": c.Media.ProcessingRoot,
		"MEDIA_STAGING_ROOT":    c.Media.StagingRoot,
		"MEDIA_OUTPUT_ROOT":     c.Media.OutputRoot,
	}
	seen := make(map[string]string, len(roots))
	for _, key := range []string{"MEDIA_INPUT_ROOT", "MEDIA_PROCESSING_ROOT", "MEDIA_STAGING_ROOT", "MEDIA_OUTPUT_ROOT"} {
		root := roots[key]
		if root == "" {
			return fmt.Errorf("config: %s must not be empty", key)
		}
		if !filepath.IsAbs(root) {
			return fmt.Errorf("config: %s must be an absolute path, got %q", key, root)
		}
		if prev, ok := seen[root]; ok {
			return fmt.Errorf("config: %s and %s must not point at the same directory %q", prev, key, root)
		}
		seen[root] = key
	}
	return nil
}

// EnsureDirectories creates the writable roots. The input root is read-only
// by contract and is only checked for existence on a best-effort basis.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Media.ProcessingRoot, c.Media.StagingRoot, c.Media.OutputRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func cleanRoot(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return filepath.Clean(value)
}
