package workflow

import "fmt"

// Signal and query names form the operator surface. They are part of the
// external contract and never change between releases.
const (
	SignalFinalize              = "finalize"
	SignalReviewDecision        = "reviewDecision"
	SignalDetectionConfirmation = "detectionConfirmation"

	QueryGetProgress    = "getProgress"
	QueryGetStagingTree = "getStagingTree"

	// signalFolderStatus carries disc status transitions up to the library
	// coordinator so its aggregate view reflects discs blocked on review.
	signalFolderStatus = "folderStatusUpdate"
)

// FinalizeDecision approves or rejects moving the staged tree to the output
// root.
type FinalizeDecision struct {
	Approved bool `json:"approved"`
}

// ReviewDecision resolves one low-confidence match. A correction overrides
// the suggested slot; a rejection is discarded and the item stays pending
// until an approval arrives.
type ReviewDecision struct {
	ReviewItemID     string `json:"reviewItemId"`
	Approved         bool   `json:"approved"`
	CorrectedSeason  *int   `json:"correctedSeason,omitempty"`
	CorrectedEpisode *int   `json:"correctedEpisode,omitempty"`
}

// DetectionConfirmation adjusts a non-high-confidence episode partition.
// Added paths move from the non-episode set into the episode set and removed
// paths the other way; paths outside the respective set are ignored.
type DetectionConfirmation struct {
	Confirmed    bool     `json:"confirmed"`
	AddedPaths   []string `json:"addedPaths,omitempty"`
	RemovedPaths []string `json:"removedPaths,omitempty"`
}

// EpisodeOption is one addressable episode slot offered to the reviewer.
type EpisodeOption struct {
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// SeasonOption is one season of the catalogue offered to the reviewer, so a
// correction can point at any slot across seasons.
type SeasonOption struct {
	SeasonNumber int             `json:"seasonNumber"`
	Title        string          `json:"title,omitempty"`
	EpisodeCount int             `json:"episodeCount"`
	Episodes     []EpisodeOption `json:"episodes,omitempty"`
}

// ReviewItem is one low-confidence match awaiting an operator decision.
type ReviewItem struct {
	ID               string         `json:"id"`
	FolderName       string         `json:"folderName"`
	FileName         string         `json:"fileName"`
	FilePath         string         `json:"filePath"`
	SuggestedSeason  int            `json:"suggestedSeason"`
	SuggestedEpisode int            `json:"suggestedEpisode"`
	SuggestedTitle   string         `json:"suggestedTitle,omitempty"`
	Confidence       float64        `json:"confidence"`
	Reasoning        string         `json:"reasoning,omitempty"`
	SubtitleSnippet  string         `json:"subtitleSnippet,omitempty"`
	AvailableSeasons []SeasonOption `json:"availableSeasons"`
}

// ReviewItemID builds the stable identifier decisions are keyed by.
func ReviewItemID(folderName, fileName string) string {
	return fmt.Sprintf("%s-%s", folderName, fileName)
}

// folderStatusUpdate is the internal disc-to-library status signal payload.
type folderStatusUpdate struct {
	FolderName         string       `json:"folderName"`
	Status             FolderStatus `json:"status"`
	PendingReviewCount int          `json:"pendingReviewCount"`
}
