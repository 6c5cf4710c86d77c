// Package config loads the process-scoped configuration snapshot from the
// environment. The worker reads it once at startup; workflows never consult
// it directly and receive the paths they need as inputs.
package config
