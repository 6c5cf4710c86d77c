package workflow

import (
	"sera/internal/media"
)

// Stage identifies where the library coordinator is in its six-stage
// pipeline. The string form is the wire representation for the query
// surface.
type Stage string

const (
	StageCopying           Stage = "copying"
	StageFetchingMetadata  Stage = "fetching_metadata"
	StageProcessingFolders Stage = "processing_folders"
	StageStructuring       Stage = "structuring"
	StageAwaitingFinalize  Stage = "awaiting_finalize"
	StageFinalizing        Stage = "finalizing"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
	StageCanceled          Stage = "canceled"
)

// FolderStatus identifies where a disc coordinator is in its state machine.
type FolderStatus string

const (
	FolderPending                 FolderStatus = "pending"
	FolderScanning                FolderStatus = "scanning"
	FolderExtracting              FolderStatus = "extracting"
	FolderMatching                FolderStatus = "matching"
	FolderRenaming                FolderStatus = "renaming"
	FolderAwaitingDetectionReview FolderStatus = "awaiting_detection_review"
	FolderAwaitingReview          FolderStatus = "awaiting_review"
	FolderCompleted               FolderStatus = "completed"
	FolderFailed                  FolderStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s FolderStatus) Terminal() bool {
	return s == FolderCompleted || s == FolderFailed
}

// AwaitingHuman reports whether the disc is blocked on an operator signal.
func (s FolderStatus) AwaitingHuman() bool {
	return s == FolderAwaitingReview || s == FolderAwaitingDetectionReview
}

// CopyProgress tracks one parallel-copy batch.
type CopyProgress struct {
	TotalFiles   int      `json:"totalFiles"`
	TotalBytes   int64    `json:"totalBytes"`
	FilesCopied  int      `json:"filesCopied"`
	BytesCopied  int64    `json:"bytesCopied"`
	CurrentFiles []string `json:"currentFiles"`
}

func (p *CopyProgress) fileStarted(name string) {
	p.CurrentFiles = append(p.CurrentFiles, name)
}

func (p *CopyProgress) fileFinished(file media.SourceFile) {
	p.CurrentFiles = removeString(p.CurrentFiles, file.Name)
	p.FilesCopied++
	p.BytesCopied += file.SizeBytes
}

func (p *CopyProgress) fileAborted(file media.SourceFile) {
	p.CurrentFiles = removeString(p.CurrentFiles, file.Name)
}

// StructuringProgress tracks the local restructure and the staging copy.
type StructuringProgress struct {
	TotalFiles      int    `json:"totalFiles"`
	FilesStructured int    `json:"filesStructured"`
	CurrentFile     string `json:"currentFile,omitempty"`
}

func (p *StructuringProgress) fileStarted(name string) {
	p.CurrentFile = name
}

func (p *StructuringProgress) fileFinished(file media.SourceFile) {
	p.FilesStructured++
	if p.CurrentFile == file.Name {
		p.CurrentFile = ""
	}
}

func (p *StructuringProgress) fileAborted(file media.SourceFile) {
	if p.CurrentFile == file.Name {
		p.CurrentFile = ""
	}
}

// SeasonSummary is the per-season line of the metadata summary.
type SeasonSummary struct {
	SeasonNumber int    `json:"seasonNumber"`
	Title        string `json:"title"`
	EpisodeCount int    `json:"episodeCount"`
}

// MetadataSummary tracks catalogue discovery through its phases:
// searching, found, traversing, fetching_episodes, complete.
type MetadataSummary struct {
	Status        string          `json:"status"`
	AnimeName     string          `json:"animeName,omitempty"`
	SeasonCount   int             `json:"seasonCount"`
	TotalEpisodes int             `json:"totalEpisodes"`
	Seasons       []SeasonSummary `json:"seasons,omitempty"`
}

// OrganizeLibraryProgress is the library coordinator's query snapshot.
type OrganizeLibraryProgress struct {
	Stage                    Stage                   `json:"stage"`
	CopyProgress             *CopyProgress           `json:"copyProgress,omitempty"`
	MetadataSummary          *MetadataSummary        `json:"metadataSummary,omitempty"`
	StructuringProgress      *StructuringProgress    `json:"structuringProgress,omitempty"`
	OutputProgress           *CopyProgress           `json:"outputProgress,omitempty"`
	TotalFolders             int                     `json:"totalFolders"`
	FoldersCompleted         int                     `json:"foldersCompleted"`
	FoldersFailed            int                     `json:"foldersFailed"`
	FoldersInProgress        int                     `json:"foldersInProgress"`
	FoldersPendingReview     int                     `json:"foldersPendingReview"`
	FolderStatuses           map[string]FolderStatus `json:"folderStatuses"`
	ExpectedCoreEpisodeCount int                     `json:"expectedCoreEpisodeCount"`
	ResolvedCoreEpisodeCount int                     `json:"resolvedCoreEpisodeCount"`
	UnresolvedCoreEpisodes   int                     `json:"unresolvedCoreEpisodeCount"`
	CanFinalize              bool                    `json:"canFinalize"`
	AwaitingFinalApproval    bool                    `json:"awaitingFinalApproval"`
}

// ProcessFolderProgress is the disc coordinator's query snapshot.
type ProcessFolderProgress struct {
	FolderName           string                    `json:"folderName"`
	Status               FolderStatus              `json:"status"`
	TotalVideoFiles      int                       `json:"totalVideoFiles,omitempty"`
	DetectedEpisodeCount int                       `json:"detectedEpisodeCount,omitempty"`
	DetectionConfidence  media.DetectionConfidence `json:"detectionConfidence,omitempty"`
	TotalEpisodeFiles    int                       `json:"totalEpisodeFiles,omitempty"`
	SubtitlesExtracted   int                       `json:"subtitlesExtracted"`
	CurrentFile          string                    `json:"currentFile,omitempty"`
	MatchesFound         int                       `json:"matchesFound,omitempty"`
	TotalToMatch         int                       `json:"totalToMatch,omitempty"`
	EpisodesCopied       int                       `json:"episodesCopied"`
	TotalEpisodesToCopy  int                       `json:"totalEpisodesToCopy,omitempty"`
	PendingReviews       []ReviewItem              `json:"pendingReviews"`
}

func removeString(values []string, target string) []string {
	for i, value := range values {
		if value == target {
			return append(values[:i:i], values[i+1:]...)
		}
	}
	return values
}
