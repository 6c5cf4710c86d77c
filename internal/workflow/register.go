package workflow

import (
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Register attaches the coordinators and their activities to a worker under
// their stable external names.
func Register(w worker.Worker, activities *Activities) {
	w.RegisterWorkflowWithOptions(OrganizeLibraryWorkflow, workflow.RegisterOptions{Name: OrganizeLibraryWorkflowName})
	w.RegisterWorkflowWithOptions(ProcessFolderWorkflow, workflow.RegisterOptions{Name: ProcessFolderWorkflowName})
	w.RegisterActivity(activities)
}
