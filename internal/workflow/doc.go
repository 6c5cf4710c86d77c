// Package workflow contains the durable coordinators of the library
// organizer: the series-level pipeline, the per-disc state machine, the
// parallel copy window, and the signal/query surface operators interact
// with. Workflow code is deterministic; every side effect runs through the
// Activities struct.
package workflow
