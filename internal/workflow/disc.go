package workflow

import (
	"errors"
	"path/filepath"
	"sort"

	"go.temporal.io/sdk/workflow"

	"sera/internal/media"
	"sera/internal/services/subtitles"
)

// reviewSnippetLength caps the transcript excerpt shown to reviewers.
const reviewSnippetLength = 500

var errNoSubtitles = errors.New("no subtitles could be extracted from any episode file")

type discState struct {
	progress  ProcessFolderProgress
	decisions map[string]ReviewDecision
	detection *DetectionConfirmation
}

func (s *discState) setStatus(ctx workflow.Context, status FolderStatus) {
	s.progress.Status = status
	notifyParent(ctx, folderStatusUpdate{
		FolderName:         s.progress.FolderName,
		Status:             status,
		PendingReviewCount: len(s.progress.PendingReviews),
	})
}

func (p ProcessFolderProgress) snapshot() ProcessFolderProgress {
	p.PendingReviews = append([]ReviewItem(nil), p.PendingReviews...)
	return p
}

// notifyParent pushes a status transition to the library coordinator so its
// aggregate view can reflect discs blocked on human input. Best effort: a
// disc run without a parent just skips it.
func notifyParent(ctx workflow.Context, update folderStatusUpdate) {
	info := workflow.GetInfo(ctx)
	if info.ParentWorkflowExecution == nil {
		return
	}
	future := workflow.SignalExternalWorkflow(ctx, info.ParentWorkflowExecution.ID, "", signalFolderStatus, update)
	workflow.Go(ctx, func(ctx workflow.Context) {
		_ = future.Get(ctx, nil)
	})
}

// ProcessFolderWorkflow organizes one disc folder: detect the episode
// cluster, extract transcripts, match them against the catalogue, and copy
// renamed episodes into the series working tree. Failures are reported in
// the result rather than thrown so sibling discs keep running.
func ProcessFolderWorkflow(ctx workflow.Context, input ProcessFolderInput) (ProcessFolderResult, error) {
	state := &discState{
		progress:  ProcessFolderProgress{FolderName: input.FolderName, Status: FolderPending},
		decisions: map[string]ReviewDecision{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (ProcessFolderProgress, error) {
		return state.progress.snapshot(), nil
	}); err != nil {
		return ProcessFolderResult{}, err
	}
	drainDiscSignals(ctx, state)

	result, err := runDisc(ctx, input, state)
	if err != nil {
		if ctx.Err() != nil {
			return ProcessFolderResult{}, err
		}
		workflow.GetLogger(ctx).Error("folder processing failed", "folder", input.FolderName, "error", err)
		state.setStatus(ctx, FolderFailed)
		return ProcessFolderResult{
			FolderName:      input.FolderName,
			Status:          FolderFailed,
			TotalVideoFiles: state.progress.TotalVideoFiles,
			Error:           err.Error(),
		}, nil
	}
	return result, nil
}

func drainDiscSignals(ctx workflow.Context, state *discState) {
	reviewCh := workflow.GetSignalChannel(ctx, SignalReviewDecision)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var decision ReviewDecision
			if !reviewCh.Receive(ctx, &decision) {
				return
			}
			state.decisions[decision.ReviewItemID] = decision
		}
	})
	confirmCh := workflow.GetSignalChannel(ctx, SignalDetectionConfirmation)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var confirmation DetectionConfirmation
			if !confirmCh.Receive(ctx, &confirmation) {
				return
			}
			state.detection = &confirmation
		}
	})
}

type pendingReview struct {
	item  ReviewItem
	match media.EpisodeMatch
}

type slotKey struct {
	Season  int
	Episode int
}

func runDisc(ctx workflow.Context, input ProcessFolderInput, state *discState) (ProcessFolderResult, error) {
	logger := workflow.GetLogger(ctx)
	threshold := input.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	var a *Activities

	// Scan: partition the folder's video files by size cluster.
	state.setStatus(ctx, FolderScanning)
	var detection media.DetectionResult
	if err := workflow.ExecuteActivity(withDefaultActivityOptions(ctx), a.DetectEpisodes, input.FolderPath).Get(ctx, &detection); err != nil {
		return ProcessFolderResult{}, err
	}
	state.progress.TotalVideoFiles = len(detection.Episodes) + len(detection.NonEpisodes)
	state.progress.DetectedEpisodeCount = len(detection.Episodes)
	state.progress.DetectionConfidence = detection.Confidence

	if state.progress.TotalVideoFiles == 0 {
		state.setStatus(ctx, FolderCompleted)
		return ProcessFolderResult{FolderName: input.FolderName, Status: FolderCompleted}, nil
	}

	// Anything below high confidence needs the partition confirmed before
	// files are committed to it.
	if detection.Confidence != media.ConfidenceHigh {
		state.setStatus(ctx, FolderAwaitingDetectionReview)
		for {
			if err := workflow.Await(ctx, func() bool { return state.detection != nil }); err != nil {
				return ProcessFolderResult{}, err
			}
			confirmation := *state.detection
			state.detection = nil
			if !confirmation.Confirmed {
				continue
			}
			applyDetectionAdjustments(&detection, confirmation)
			break
		}
		state.progress.DetectedEpisodeCount = len(detection.Episodes)
	}

	relToSeries := func(file media.SourceFile) string {
		if rel, err := filepath.Rel(input.SeriesRoot, file.Path); err == nil && filepath.IsLocal(rel) {
			return rel
		}
		return file.RelativePath
	}

	finish := func(renamed []media.RenamedFile, matchedPaths map[string]bool) ProcessFolderResult {
		var unprocessed []string
		for _, file := range detection.NonEpisodes {
			unprocessed = append(unprocessed, relToSeries(file))
		}
		for _, file := range detection.Episodes {
			if !matchedPaths[file.Path] {
				unprocessed = append(unprocessed, relToSeries(file))
			}
		}
		sort.Strings(unprocessed)
		originals := make([]string, 0, len(renamed))
		for _, rf := range renamed {
			originals = append(originals, rf.OriginalPath)
		}
		state.setStatus(ctx, FolderCompleted)
		return ProcessFolderResult{
			FolderName:           input.FolderName,
			Status:               FolderCompleted,
			TotalVideoFiles:      state.progress.TotalVideoFiles,
			EpisodesRenamed:      len(renamed),
			RenamedFiles:         renamed,
			EpisodeOriginalPaths: originals,
			UnprocessedFiles:     unprocessed,
		}
	}

	if len(detection.Episodes) == 0 {
		return finish(nil, nil), nil
	}

	// Extract: one transcript per episode file. Tool failures on individual
	// files are tolerated; a disc with zero transcripts cannot be matched.
	state.setStatus(ctx, FolderExtracting)
	state.progress.TotalEpisodeFiles = len(detection.Episodes)
	toolCtx := withToolActivityOptions(ctx)
	transcriptDir := filepath.Join(input.WorkRoot, SubtitlesDirName, input.FolderName)
	var subs []media.SubtitleFile
	videoByTranscript := map[string]media.SourceFile{}
	for _, file := range detection.Episodes {
		state.progress.CurrentFile = file.Name
		var sub *media.SubtitleFile
		err := workflow.ExecuteActivity(toolCtx, a.ExtractSubtitles, subtitles.Request{
			MediaPath: file.Path,
			MediaName: file.Name,
			TargetDir: transcriptDir,
		}).Get(ctx, &sub)
		if err != nil {
			if ctx.Err() != nil {
				return ProcessFolderResult{}, err
			}
			logger.Warn("subtitle extraction failed", "folder", input.FolderName, "file", file.Name, "error", err)
			continue
		}
		if sub == nil {
			continue
		}
		subs = append(subs, *sub)
		videoByTranscript[sub.FileName] = file
		state.progress.SubtitlesExtracted++
	}
	state.progress.CurrentFile = ""
	if len(subs) == 0 {
		return ProcessFolderResult{}, errNoSubtitles
	}

	// Match: ask the model for (file, slot) assignments.
	state.setStatus(ctx, FolderMatching)
	state.progress.TotalToMatch = len(subs)
	var matched matchResultPayload
	if err := workflow.ExecuteActivity(withMatchActivityOptions(ctx), a.MatchEpisodes, MatchEpisodesInput{
		Subtitles: subs,
		Metadata:  input.Metadata,
	}).Get(ctx, &matched); err != nil {
		return ProcessFolderResult{}, err
	}
	state.progress.MatchesFound = len(matched.Matches)

	// Partition matches: confident claims of free slots rename directly,
	// everything else goes to review. Higher confidence claims a contested
	// slot first; later claimants are reviewed.
	ordered := append([]media.EpisodeMatch(nil), matched.Matches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Confidence > ordered[j].Confidence })
	occupied := map[slotKey]bool{}
	var direct []media.EpisodeMatch
	var queue []pendingReview
	for _, match := range ordered {
		video, ok := videoByTranscript[match.FileName]
		if !ok {
			continue
		}
		key := slotKey{match.SeasonNumber, match.EpisodeNumber}
		if match.Confidence >= threshold && !occupied[key] {
			occupied[key] = true
			direct = append(direct, match)
			continue
		}
		queue = append(queue, pendingReview{
			item:  buildReviewItem(input, match, video, subtitleFor(subs, match.FileName)),
			match: match,
		})
	}

	state.setStatus(ctx, FolderRenaming)
	state.progress.TotalEpisodesToCopy = len(direct) + len(queue)

	renamed := make([]media.RenamedFile, 0, len(direct))
	matchedPaths := map[string]bool{}
	renameOne := func(match media.EpisodeMatch) error {
		video := videoByTranscript[match.FileName]
		fileName := media.EpisodeFileName(input.ShowName, match.SeasonNumber, match.EpisodeNumber, match.EpisodeTitle, video.Name)
		record := media.RenamedFile{
			OriginalPath:         video.Path,
			OriginalRelativePath: relToSeries(video),
			NewFileName:          fileName,
			SeasonNumber:         match.SeasonNumber,
			EpisodeNumber:        match.EpisodeNumber,
		}
		if input.DryRun {
			record.NewPath = filepath.Join(input.WorkRoot, EpisodesDirName, media.SeasonDirName(match.SeasonNumber), fileName)
		} else {
			var out CopyEpisodeResult
			err := workflow.ExecuteActivity(withCopyActivityOptions(ctx), a.CopyEpisode, CopyEpisodeInput{
				SourcePath:   video.Path,
				SeriesRoot:   input.WorkRoot,
				SeasonNumber: match.SeasonNumber,
				FileName:     fileName,
			}).Get(ctx, &out)
			if err != nil {
				return err
			}
			record.NewPath = out.DestPath
		}
		renamed = append(renamed, record)
		matchedPaths[video.Path] = true
		state.progress.EpisodesCopied++
		return nil
	}

	for _, match := range direct {
		if err := renameOne(match); err != nil {
			return ProcessFolderResult{}, err
		}
	}

	// Reviews resolve serially: the queue head blocks until its decision
	// arrives. A rejection discards only the decision, the item stays at the
	// queue head so the operator can resubmit; a correction that collides
	// with an already-claimed slot re-queues the item for another decision.
	if len(queue) > 0 {
		state.progress.PendingReviews = reviewItems(queue)
		state.setStatus(ctx, FolderAwaitingReview)
	}
	for len(queue) > 0 {
		entry := queue[0]
		if err := workflow.Await(ctx, func() bool {
			_, ok := state.decisions[entry.item.ID]
			return ok
		}); err != nil {
			return ProcessFolderResult{}, err
		}
		decision := state.decisions[entry.item.ID]
		delete(state.decisions, entry.item.ID)

		if !decision.Approved {
			logger.Info("review decision rejected, awaiting resubmission", "item", entry.item.ID)
			continue
		}
		queue = queue[1:]
		match := entry.match
		if decision.CorrectedSeason != nil {
			match.SeasonNumber = *decision.CorrectedSeason
		}
		if decision.CorrectedEpisode != nil {
			match.EpisodeNumber = *decision.CorrectedEpisode
		}
		if _, ok := input.Metadata.FindEpisode(match.SeasonNumber, match.EpisodeNumber); !ok {
			logger.Warn("review decision points at unknown slot, re-queueing",
				"item", entry.item.ID, "season", match.SeasonNumber, "episode", match.EpisodeNumber)
			queue = append(queue, entry)
			state.progress.PendingReviews = reviewItems(queue)
			continue
		}
		key := slotKey{match.SeasonNumber, match.EpisodeNumber}
		if occupied[key] {
			logger.Warn("review decision collides with a claimed slot, re-queueing",
				"item", entry.item.ID, "season", match.SeasonNumber, "episode", match.EpisodeNumber)
			queue = append(queue, entry)
			state.progress.PendingReviews = reviewItems(queue)
			continue
		}
		occupied[key] = true
		match.EpisodeTitle = input.Metadata.EpisodeTitleOrDefault(match.SeasonNumber, match.EpisodeNumber)
		if err := renameOne(match); err != nil {
			return ProcessFolderResult{}, err
		}
		state.progress.PendingReviews = reviewItems(queue)
	}

	return finish(renamed, matchedPaths), nil
}

// matchResultPayload mirrors matcher.MatchResult without importing it into
// every workflow call site.
type matchResultPayload struct {
	Matches []media.EpisodeMatch `json:"matches"`
}

func applyDetectionAdjustments(detection *media.DetectionResult, confirmation DetectionConfirmation) {
	added := toPathSet(confirmation.AddedPaths)
	removed := toPathSet(confirmation.RemovedPaths)

	var episodes, nonEpisodes []media.SourceFile
	for _, file := range detection.Episodes {
		if matchesAny(file, removed) {
			nonEpisodes = append(nonEpisodes, file)
		} else {
			episodes = append(episodes, file)
		}
	}
	for _, file := range detection.NonEpisodes {
		if matchesAny(file, added) {
			episodes = append(episodes, file)
		} else {
			nonEpisodes = append(nonEpisodes, file)
		}
	}
	sortByRelativePath(episodes)
	sortByRelativePath(nonEpisodes)
	detection.Episodes = episodes
	detection.NonEpisodes = nonEpisodes
}

func toPathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, path := range paths {
		set[path] = true
	}
	return set
}

func matchesAny(file media.SourceFile, set map[string]bool) bool {
	return set[file.Path] || set[file.RelativePath] || set[file.Name]
}

func sortByRelativePath(files []media.SourceFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
}

func subtitleFor(subs []media.SubtitleFile, fileName string) string {
	for _, sub := range subs {
		if sub.FileName == fileName {
			return sub.Content
		}
	}
	return ""
}

func buildReviewItem(input ProcessFolderInput, match media.EpisodeMatch, video media.SourceFile, transcript string) ReviewItem {
	return ReviewItem{
		ID:               ReviewItemID(input.FolderName, video.Name),
		FolderName:       input.FolderName,
		FileName:         video.Name,
		FilePath:         video.Path,
		SuggestedSeason:  match.SeasonNumber,
		SuggestedEpisode: match.EpisodeNumber,
		SuggestedTitle:   match.EpisodeTitle,
		Confidence:       match.Confidence,
		Reasoning:        match.Reasoning,
		SubtitleSnippet:  snippet(transcript, reviewSnippetLength),
		AvailableSeasons: seasonOptions(input.Metadata),
	}
}

func reviewItems(queue []pendingReview) []ReviewItem {
	items := make([]ReviewItem, 0, len(queue))
	for _, entry := range queue {
		items = append(items, entry.item)
	}
	return items
}

func seasonOptions(metadata media.SeriesMetadata) []SeasonOption {
	options := make([]SeasonOption, 0, len(metadata.Seasons))
	for _, season := range metadata.Seasons {
		title := season.TitleEnglish
		if title == "" {
			title = season.TitleRomaji
		}
		option := SeasonOption{
			SeasonNumber: season.SeasonNumber,
			Title:        title,
			EpisodeCount: season.EpisodeCount,
		}
		for _, ep := range season.Episodes {
			option.Episodes = append(option.Episodes, EpisodeOption{Number: ep.Number, Title: ep.Title})
		}
		options = append(options, option)
	}
	return options
}

func snippet(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}
