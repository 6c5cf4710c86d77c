package workflow

import "sera/internal/media"

// Registered workflow names. Starters reference these instead of function
// values so the CLI does not need the workflow package's dependencies.
const (
	OrganizeLibraryWorkflowName = "OrganizeLibraryWorkflow"
	ProcessFolderWorkflowName   = "ProcessFolderWorkflow"
)

// DefaultConfidenceThreshold separates direct renames from human review.
const DefaultConfidenceThreshold = 0.85

// OrganizeLibraryInput starts one series run. SourceDir is the series
// directory under the input root; the three writable roots come from process
// configuration at start time so a run is self-contained and replayable.
type OrganizeLibraryInput struct {
	SourceDir           string  `json:"sourceDir"`
	ProcessingRoot      string  `json:"processingRoot"`
	StagingRoot         string  `json:"stagingRoot"`
	OutputRoot          string  `json:"outputRoot"`
	DryRun              bool    `json:"dryRun"`
	ConfidenceThreshold float64 `json:"confidenceThreshold,omitempty"`
}

// FolderResult is the library's per-disc summary line.
type FolderResult struct {
	FolderName      string       `json:"folderName"`
	Status          FolderStatus `json:"status"`
	EpisodesRenamed int          `json:"episodesRenamed"`
	Error           string       `json:"error,omitempty"`
}

// OrganizeLibraryResult is the run outcome. Stage failures are projected
// here rather than thrown, so a consumer always receives the partial
// accounting of what the run accomplished.
type OrganizeLibraryResult struct {
	Stage                Stage          `json:"stage"`
	ShowName             string         `json:"showName,omitempty"`
	FoldersCompleted     int            `json:"foldersCompleted"`
	FoldersFailed        int            `json:"foldersFailed"`
	FoldersPendingReview int            `json:"foldersPendingReview"`
	Folders              []FolderResult `json:"folders"`
	TotalEpisodesRenamed int            `json:"totalEpisodesRenamed"`
	OutputPath           string         `json:"outputPath,omitempty"`
	Error                string         `json:"error,omitempty"`
}

// ProcessFolderInput drives one disc coordinator. FolderPath is the disc
// directory, SeriesRoot the series directory it lives under, and WorkRoot
// the scratch sandbox transcripts and renamed episodes are written into.
// The two roots coincide except in a dry run, where SeriesRoot is the
// read-only source.
type ProcessFolderInput struct {
	FolderPath          string               `json:"folderPath"`
	FolderName          string               `json:"folderName"`
	SeriesRoot          string               `json:"seriesRoot"`
	WorkRoot            string               `json:"workRoot"`
	ShowName            string               `json:"showName"`
	Metadata            media.SeriesMetadata `json:"metadata"`
	DryRun              bool                 `json:"dryRun"`
	ConfidenceThreshold float64              `json:"confidenceThreshold,omitempty"`
}

// ProcessFolderResult is returned to the library coordinator. A failed disc
// reports its error here and returns normally, so one bad disc never takes
// down its siblings.
type ProcessFolderResult struct {
	FolderName           string              `json:"folderName"`
	Status               FolderStatus        `json:"status"`
	TotalVideoFiles      int                 `json:"totalVideoFiles"`
	EpisodesRenamed      int                 `json:"episodesRenamed"`
	RenamedFiles         []media.RenamedFile `json:"renamedFiles"`
	EpisodeOriginalPaths []string            `json:"episodeOriginalPaths"`
	UnprocessedFiles     []string            `json:"unprocessedFiles"`
	Error                string              `json:"error,omitempty"`
}
