package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"sera/internal/config"
	"sera/internal/copier"
	"sera/internal/detect"
	"sera/internal/logging"
	"sera/internal/media"
	"sera/internal/services"
	"sera/internal/services/anilist"
	"sera/internal/services/matcher"
	"sera/internal/services/subtitles"
)

// Application error types the retry policy treats as permanent.
const (
	errTypeValidation    = "ValidationError"
	errTypeConfiguration = "ConfigurationError"
	errTypeNotFound      = "NotFoundError"
)

// Activities bundles every side-effecting operation the coordinators
// schedule. One instance is registered per worker process.
type Activities struct {
	catalogue *anilist.Client
	matcher   *matcher.Client
	extractor *subtitles.Extractor
	logger    *slog.Logger
}

// NewActivities wires the service clients from process configuration.
func NewActivities(cfg *config.Config, logger *slog.Logger) *Activities {
	return &Activities{
		catalogue: anilist.New(cfg.AniList.BaseURL),
		matcher: matcher.NewClient(matcher.Config{
			APIKey:  cfg.Anthropic.APIKey,
			BaseURL: cfg.Anthropic.BaseURL,
			Model:   cfg.Anthropic.Model,
		}),
		extractor: subtitles.NewExtractor(logger),
		logger:    logger,
	}
}

// EnumerateSourceFiles lists every regular file under root, sorted by
// relative path.
func (a *Activities) EnumerateSourceFiles(ctx context.Context, root string) ([]media.SourceFile, error) {
	files, err := media.EnumerateFiles(root)
	if err != nil {
		return nil, classify(err)
	}
	return files, nil
}

// ListFolders lists the immediate non-reserved subdirectories of dir.
func (a *Activities) ListFolders(ctx context.Context, dir string) ([]string, error) {
	names, err := media.ListSubdirectories(dir)
	if err != nil {
		return nil, classify(err)
	}
	return names, nil
}

// CopyFileInput names one source file and its destination path.
type CopyFileInput struct {
	SourcePath string `json:"sourcePath"`
	DestPath   string `json:"destPath"`
}

// CopyFile streams one file, heartbeating while the transfer is in flight.
func (a *Activities) CopyFile(ctx context.Context, in CopyFileInput) error {
	err := copier.CopyFile(in.SourcePath, in.DestPath, func(bytesCopied int64) {
		activity.RecordHeartbeat(ctx, bytesCopied)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// MoveFileInput names one rename within the processing filesystem.
type MoveFileInput struct {
	SourcePath string `json:"sourcePath"`
	DestPath   string `json:"destPath"`
}

// MoveFile renames a file, treating an already-moved source as done.
func (a *Activities) MoveFile(ctx context.Context, in MoveFileInput) error {
	if err := copier.MoveFile(in.SourcePath, in.DestPath); err != nil {
		return classify(err)
	}
	return nil
}

// DetectEpisodes partitions a disc folder's video files by size cluster.
func (a *Activities) DetectEpisodes(ctx context.Context, folderPath string) (media.DetectionResult, error) {
	result, err := detect.Detect(folderPath)
	if err != nil {
		return media.DetectionResult{}, classify(err)
	}
	a.logger.Info("episode detection finished",
		logging.String("folder", filepath.Base(folderPath)),
		logging.Int("episodes", len(result.Episodes)),
		logging.Int("nonEpisodes", len(result.NonEpisodes)),
		logging.String("confidence", string(result.Confidence)),
	)
	return result, nil
}

// ExtractSubtitles produces the plain-text transcript for one video file, or
// nil when the file carries no usable dialogue.
func (a *Activities) ExtractSubtitles(ctx context.Context, req subtitles.Request) (*media.SubtitleFile, error) {
	sub, err := a.extractor.Extract(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	return sub, nil
}

// SearchAnime resolves a cleaned series name to its catalogue entry. A nil
// result means the catalogue has no match.
func (a *Activities) SearchAnime(ctx context.Context, name string) (*anilist.SearchResult, error) {
	result, err := a.catalogue.SearchAnime(ctx, name)
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// DiscoverSeasons walks the relation chain around one catalogue entry and
// returns the full season list in broadcast order.
func (a *Activities) DiscoverSeasons(ctx context.Context, anilistID int) ([]anilist.MinimalEntry, error) {
	seasons, err := a.catalogue.DiscoverAllSeasons(ctx, anilistID)
	if err != nil {
		return nil, classify(err)
	}
	return seasons, nil
}

// FetchEpisodesInput identifies one season's episode list request.
type FetchEpisodesInput struct {
	AniListID     int `json:"anilistId"`
	ExpectedCount int `json:"expectedCount"`
}

// FetchSeasonEpisodes returns the ordered episode list for one season.
func (a *Activities) FetchSeasonEpisodes(ctx context.Context, in FetchEpisodesInput) ([]media.EpisodeMetadata, error) {
	episodes, err := a.catalogue.FetchSeasonEpisodes(ctx, in.AniListID, in.ExpectedCount)
	if err != nil {
		return nil, classify(err)
	}
	return episodes, nil
}

// MatchEpisodesInput carries one disc's transcripts and the series catalogue.
type MatchEpisodesInput struct {
	Subtitles []media.SubtitleFile `json:"subtitles"`
	Metadata  media.SeriesMetadata `json:"metadata"`
}

// MatchEpisodes asks the model for (file, slot) assignments. The result is
// already validated against the catalogue.
func (a *Activities) MatchEpisodes(ctx context.Context, in MatchEpisodesInput) (matcher.MatchResult, error) {
	result, err := a.matcher.MatchEpisodes(ctx, in.Subtitles, in.Metadata)
	if err != nil {
		return matcher.MatchResult{}, classify(err)
	}
	a.logger.Info("episode matching finished",
		logging.Int("subtitles", len(in.Subtitles)),
		logging.Int("matches", len(result.Matches)),
	)
	return result, nil
}

// CopyEpisodeInput places one matched file into the series working tree.
type CopyEpisodeInput struct {
	SourcePath   string `json:"sourcePath"`
	SeriesRoot   string `json:"seriesRoot"`
	SeasonNumber int    `json:"seasonNumber"`
	FileName     string `json:"fileName"`
}

// CopyEpisodeResult reports where the episode landed and whether the copy
// was skipped because an identical file already existed.
type CopyEpisodeResult struct {
	DestPath string `json:"destPath"`
	Skipped  bool   `json:"skipped"`
}

// CopyEpisode copies a matched file into
// <seriesRoot>/_episodes/Season NN/<fileName>. A destination with the source's
// exact size is treated as already done, which keeps retried and replayed
// renames idempotent.
func (a *Activities) CopyEpisode(ctx context.Context, in CopyEpisodeInput) (CopyEpisodeResult, error) {
	dest := filepath.Join(in.SeriesRoot, EpisodesDirName, media.SeasonDirName(in.SeasonNumber), in.FileName)

	srcInfo, err := os.Stat(in.SourcePath)
	if err != nil {
		return CopyEpisodeResult{}, classify(services.Wrap(services.ErrValidation, "copier", "stat episode source", in.SourcePath, err))
	}
	if destInfo, err := os.Stat(dest); err == nil && destInfo.Size() == srcInfo.Size() {
		return CopyEpisodeResult{DestPath: dest, Skipped: true}, nil
	}

	err = copier.CopyFile(in.SourcePath, dest, func(bytesCopied int64) {
		activity.RecordHeartbeat(ctx, bytesCopied)
	})
	if err != nil {
		return CopyEpisodeResult{}, classify(err)
	}
	return CopyEpisodeResult{DestPath: dest}, nil
}

// CaptureStagingTree snapshots the staged directory for the tree query.
func (a *Activities) CaptureStagingTree(ctx context.Context, root string) (*media.TreeNode, error) {
	tree, err := copier.CaptureTree(root)
	if err != nil {
		return nil, classify(err)
	}
	return tree, nil
}

// VerifyOutputInput names the staged tree and its copied counterpart.
type VerifyOutputInput struct {
	SourceRoot string `json:"sourceRoot"`
	OutputRoot string `json:"outputRoot"`
}

// VerifyOutput checks that every staged file exists in the output with an
// identical size.
func (a *Activities) VerifyOutput(ctx context.Context, in VerifyOutputInput) (copier.VerificationReport, error) {
	report, err := copier.VerifyTree(in.SourceRoot, in.OutputRoot)
	if err != nil {
		return copier.VerificationReport{}, classify(err)
	}
	if !report.Verified {
		a.logger.Warn("output verification found gaps",
			logging.Int("missing", len(report.Missing)),
			logging.String("output", in.OutputRoot),
		)
	}
	return report, nil
}

// RemoveDirectory deletes a run sandbox recursively. Paths must carry at
// least two components below the filesystem root so a malformed input can
// never point at a media root itself.
func (a *Activities) RemoveDirectory(ctx context.Context, path string) error {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) || strings.Count(clean, string(filepath.Separator)) < 2 {
		return classify(services.Wrap(services.ErrValidation, "cleanup", "remove directory", fmt.Sprintf("refusing to remove %q", path), nil))
	}
	if err := os.RemoveAll(clean); err != nil {
		return classify(err)
	}
	a.logger.Info("removed sandbox", logging.String("path", clean))
	return nil
}

// classify maps the service error taxonomy onto application error types so
// the retry policy can tell permanent failures from transient ones. The
// retry decision itself belongs to services.NonRetryable; this only names
// the type for the policy's non-retryable list.
func classify(err error) error {
	if err == nil || !services.NonRetryable(err) {
		return err
	}
	switch {
	case errors.Is(err, services.ErrValidation):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeValidation, err)
	case errors.Is(err, services.ErrConfiguration):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeConfiguration, err)
	default:
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
	}
}
