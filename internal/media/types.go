package media

import (
	"fmt"
	"strings"
)

// SourceFile describes one file discovered under an enumeration root.
// Immutable once created for a given root.
type SourceFile struct {
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
	Name         string `json:"name"`
	SizeBytes    int64  `json:"sizeBytes"`
}

// EpisodeMetadata is a single catalogue episode entry.
type EpisodeMetadata struct {
	Number      int    `json:"number"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SeasonMetadata is one season in the catalogue relation chain. Season
// numbers are dense from 1 in broadcast order.
type SeasonMetadata struct {
	SeasonNumber int               `json:"seasonNumber"`
	AniListID    int               `json:"anilistId"`
	TitleEnglish string            `json:"titleEnglish,omitempty"`
	TitleRomaji  string            `json:"titleRomaji,omitempty"`
	EpisodeCount int               `json:"episodeCount"`
	Episodes     []EpisodeMetadata `json:"episodes"`
}

// SeriesMetadata is the ordered multi-season view of one series.
type SeriesMetadata struct {
	Seasons []SeasonMetadata `json:"seasons"`
}

// TotalEpisodes sums the per-season episode counts.
func (m SeriesMetadata) TotalEpisodes() int {
	total := 0
	for _, season := range m.Seasons {
		total += season.EpisodeCount
	}
	return total
}

// FindEpisode resolves a (season, episode) slot to its catalogue entry.
func (m SeriesMetadata) FindEpisode(seasonNumber, episodeNumber int) (EpisodeMetadata, bool) {
	for _, season := range m.Seasons {
		if season.SeasonNumber != seasonNumber {
			continue
		}
		for _, ep := range season.Episodes {
			if ep.Number == episodeNumber {
				return ep, true
			}
		}
		// The season exists but carries no entry for this number; a slot
		// within the advertised count is still addressable.
		if episodeNumber >= 1 && episodeNumber <= season.EpisodeCount {
			return EpisodeMetadata{Number: episodeNumber}, true
		}
		return EpisodeMetadata{}, false
	}
	return EpisodeMetadata{}, false
}

// EpisodeTitleOrDefault returns the catalogue title for a slot, falling back
// to "Episode N" when the catalogue has none.
func (m SeriesMetadata) EpisodeTitleOrDefault(seasonNumber, episodeNumber int) string {
	if ep, ok := m.FindEpisode(seasonNumber, episodeNumber); ok && strings.TrimSpace(ep.Title) != "" {
		return strings.TrimSpace(ep.Title)
	}
	return fmt.Sprintf("Episode %d", episodeNumber)
}

// DetectionConfidence grades how certain the cluster detector is.
type DetectionConfidence string

const (
	ConfidenceHigh   DetectionConfidence = "high"
	ConfidenceMedium DetectionConfidence = "medium"
	ConfidenceLow    DetectionConfidence = "low"
)

// DetectionResult partitions a folder's video files into episodes and
// non-episodes. The two sets are disjoint and together cover every video
// file found under the folder (reserved "_" directories skipped).
type DetectionResult struct {
	Episodes      []SourceFile        `json:"episodes"`
	NonEpisodes   []SourceFile        `json:"nonEpisodes"`
	Confidence    DetectionConfidence `json:"confidence"`
	ClusterMedian int64               `json:"clusterMedian"`
	ClusterMin    int64               `json:"clusterMin"`
	ClusterMax    int64               `json:"clusterMax"`
}

// EpisodeMatch is one (file, slot) assignment produced by the matcher.
type EpisodeMatch struct {
	FileName      string  `json:"fileName"`
	FilePath      string  `json:"filePath"`
	SeasonNumber  int     `json:"seasonNumber"`
	EpisodeNumber int     `json:"episodeNumber"`
	EpisodeTitle  string  `json:"episodeTitle"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// RenamedFile records one completed copy-rename into the working directory.
type RenamedFile struct {
	OriginalPath         string `json:"originalPath"`
	OriginalRelativePath string `json:"originalRelativePath"`
	NewPath              string `json:"newPath"`
	NewFileName          string `json:"newFileName"`
	SeasonNumber         int    `json:"seasonNumber"`
	EpisodeNumber        int    `json:"episodeNumber"`
}

// SubtitleFile is the plain-text dialogue representation of one video file.
type SubtitleFile struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	Content  string `json:"content"`
	Source   string `json:"source"` // "embedded" or "external"
	Language string `json:"language,omitempty"`
}

// TreeNode is one entry of a captured directory tree. Directories sort
// before files; names sort alphabetically within each group.
type TreeNode struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"` // "directory" or "file"
	RelativePath string      `json:"relativePath"`
	Size         int64       `json:"size,omitempty"`
	Children     []*TreeNode `json:"children,omitempty"`
}
