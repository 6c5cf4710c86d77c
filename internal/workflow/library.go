package workflow

import (
	"fmt"
	"path/filepath"

	"go.temporal.io/sdk/workflow"

	"sera/internal/copier"
	"sera/internal/media"
	"sera/internal/services/anilist"
)

type libraryState struct {
	progress      OrganizeLibraryProgress
	stagingTree   *media.TreeNode
	finalize      *FinalizeDecision
	showName      string
	outputPath    string
	folderResults []FolderResult
	renamed       []media.RenamedFile
	resolvedSlots map[slotKey]bool
	errMsg        string
}

func newLibraryState() *libraryState {
	return &libraryState{
		progress: OrganizeLibraryProgress{
			Stage:          StageCopying,
			FolderStatuses: map[string]FolderStatus{},
		},
		resolvedSlots: map[slotKey]bool{},
	}
}

func (s *libraryState) snapshot() OrganizeLibraryProgress {
	p := s.progress
	statuses := make(map[string]FolderStatus, len(p.FolderStatuses))
	for name, status := range p.FolderStatuses {
		statuses[name] = status
	}
	p.FolderStatuses = statuses
	if p.CopyProgress != nil {
		cp := *p.CopyProgress
		cp.CurrentFiles = append([]string(nil), cp.CurrentFiles...)
		p.CopyProgress = &cp
	}
	if p.OutputProgress != nil {
		op := *p.OutputProgress
		op.CurrentFiles = append([]string(nil), op.CurrentFiles...)
		p.OutputProgress = &op
	}
	if p.StructuringProgress != nil {
		sp := *p.StructuringProgress
		p.StructuringProgress = &sp
	}
	if p.MetadataSummary != nil {
		ms := *p.MetadataSummary
		ms.Seasons = append([]SeasonSummary(nil), ms.Seasons...)
		p.MetadataSummary = &ms
	}
	return p
}

// recount rebuilds the aggregate folder counters from the status map.
// In-progress excludes pending, terminal, and awaiting-human states.
func (s *libraryState) recount() {
	var completed, failed, pendingReview, inProgress int
	for _, status := range s.progress.FolderStatuses {
		switch {
		case status == FolderCompleted:
			completed++
		case status == FolderFailed:
			failed++
		case status.AwaitingHuman():
			pendingReview++
		case status != FolderPending:
			inProgress++
		}
	}
	s.progress.FoldersCompleted = completed
	s.progress.FoldersFailed = failed
	s.progress.FoldersPendingReview = pendingReview
	s.progress.FoldersInProgress = inProgress
}

func (s *libraryState) buildResult() OrganizeLibraryResult {
	return OrganizeLibraryResult{
		Stage:                s.progress.Stage,
		ShowName:             s.showName,
		FoldersCompleted:     s.progress.FoldersCompleted,
		FoldersFailed:        s.progress.FoldersFailed,
		FoldersPendingReview: s.progress.FoldersPendingReview,
		Folders:              s.folderResults,
		TotalEpisodesRenamed: len(s.renamed),
		OutputPath:           s.outputPath,
		Error:                s.errMsg,
	}
}

// OrganizeLibraryWorkflow runs the whole pipeline for one series: copy the
// source into a processing sandbox, resolve catalogue metadata, fan disc
// folders out to child coordinators, restructure and stage the result, wait
// for operator approval, and move the staged tree to the output root.
func OrganizeLibraryWorkflow(ctx workflow.Context, input OrganizeLibraryInput) (OrganizeLibraryResult, error) {
	state := newLibraryState()
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (OrganizeLibraryProgress, error) {
		return state.snapshot(), nil
	}); err != nil {
		return OrganizeLibraryResult{}, err
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetStagingTree, func() (*media.TreeNode, error) {
		return state.stagingTree, nil
	}); err != nil {
		return OrganizeLibraryResult{}, err
	}
	drainLibrarySignals(ctx, state)

	if err := runLibrary(ctx, input, state); err != nil {
		if ctx.Err() != nil {
			state.progress.Stage = StageCanceled
			return state.buildResult(), err
		}
		workflow.GetLogger(ctx).Error("library run failed", "source", input.SourceDir, "error", err)
		state.progress.Stage = StageFailed
		state.errMsg = err.Error()
	}
	return state.buildResult(), nil
}

func drainLibrarySignals(ctx workflow.Context, state *libraryState) {
	finalizeCh := workflow.GetSignalChannel(ctx, SignalFinalize)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var decision FinalizeDecision
			if !finalizeCh.Receive(ctx, &decision) {
				return
			}
			state.finalize = &decision
		}
	})
	statusCh := workflow.GetSignalChannel(ctx, signalFolderStatus)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var update folderStatusUpdate
			if !statusCh.Receive(ctx, &update) {
				return
			}
			state.progress.FolderStatuses[update.FolderName] = update.Status
			state.recount()
		}
	})
}

type folderTask struct {
	Name string
	Path string
}

func runLibrary(ctx workflow.Context, input OrganizeLibraryInput, state *libraryState) error {
	var a *Activities
	activityCtx := withDefaultActivityOptions(ctx)

	seriesName := filepath.Base(input.SourceDir)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	workRoot := filepath.Join(input.ProcessingRoot, runID, seriesName)
	seriesDir := workRoot
	if input.DryRun {
		// A dry run scans the source in place; only transcript scratch files
		// land under the processing sandbox.
		seriesDir = input.SourceDir
	}

	// Stage 1: copy the source tree into the processing sandbox.
	state.progress.Stage = StageCopying
	var sourceFiles []media.SourceFile
	if err := workflow.ExecuteActivity(activityCtx, a.EnumerateSourceFiles, input.SourceDir).Get(ctx, &sourceFiles); err != nil {
		return err
	}
	if len(sourceFiles) == 0 {
		return fmt.Errorf("source directory %s contains no files", input.SourceDir)
	}
	state.progress.CopyProgress = &CopyProgress{
		TotalFiles: len(sourceFiles),
		TotalBytes: media.TotalSize(sourceFiles),
	}
	if !input.DryRun {
		if err := runParallelCopy(ctx, sourceFiles, seriesDir, state.progress.CopyProgress); err != nil {
			return err
		}
	}

	// Stage 2: resolve the series against the catalogue.
	state.progress.Stage = StageFetchingMetadata
	summary := &MetadataSummary{Status: "searching"}
	state.progress.MetadataSummary = summary

	searchName := media.CleanSearchName(seriesName)
	var found *anilist.SearchResult
	if err := workflow.ExecuteActivity(activityCtx, a.SearchAnime, searchName).Get(ctx, &found); err != nil {
		return err
	}
	if found == nil {
		return fmt.Errorf("no catalogue match for %q", searchName)
	}
	summary.Status = "found"
	summary.AnimeName = firstNonEmpty(found.TitleEnglish, found.TitleRomaji)

	summary.Status = "traversing"
	var chain []anilist.MinimalEntry
	if err := workflow.ExecuteActivity(activityCtx, a.DiscoverSeasons, found.ID).Get(ctx, &chain); err != nil {
		return err
	}
	if len(chain) == 0 {
		return fmt.Errorf("catalogue entry %d has no TV seasons", found.ID)
	}

	summary.Status = "fetching_episodes"
	var metadata media.SeriesMetadata
	for i, entry := range chain {
		var episodes []media.EpisodeMetadata
		err := workflow.ExecuteActivity(activityCtx, a.FetchSeasonEpisodes, FetchEpisodesInput{
			AniListID:     entry.ID,
			ExpectedCount: entry.Episodes,
		}).Get(ctx, &episodes)
		if err != nil {
			return err
		}
		count := entry.Episodes
		if count <= 0 {
			count = len(episodes)
		}
		season := media.SeasonMetadata{
			SeasonNumber: i + 1,
			AniListID:    entry.ID,
			TitleEnglish: entry.TitleEnglish,
			TitleRomaji:  entry.TitleRomaji,
			EpisodeCount: count,
			Episodes:     episodes,
		}
		metadata.Seasons = append(metadata.Seasons, season)
		summary.Seasons = append(summary.Seasons, SeasonSummary{
			SeasonNumber: season.SeasonNumber,
			Title:        firstNonEmpty(season.TitleEnglish, season.TitleRomaji),
			EpisodeCount: count,
		})
	}
	summary.SeasonCount = len(metadata.Seasons)
	summary.TotalEpisodes = metadata.TotalEpisodes()
	summary.Status = "complete"
	state.progress.ExpectedCoreEpisodeCount = summary.TotalEpisodes
	state.progress.UnresolvedCoreEpisodes = summary.TotalEpisodes

	state.showName = media.ResolveShowName(metadata, input.SourceDir)
	cleanShow := media.CleanShowName(state.showName)

	// Stage 3: fan disc folders out to child coordinators.
	state.progress.Stage = StageProcessingFolders
	var folderNames []string
	if err := workflow.ExecuteActivity(activityCtx, a.ListFolders, seriesDir).Get(ctx, &folderNames); err != nil {
		return err
	}
	tasks := make([]folderTask, 0, len(folderNames))
	for _, name := range folderNames {
		tasks = append(tasks, folderTask{Name: name, Path: filepath.Join(seriesDir, name)})
	}
	if len(tasks) == 0 {
		// A flat series directory is treated as a single disc.
		tasks = append(tasks, folderTask{Name: seriesName, Path: seriesDir})
	}
	state.progress.TotalFolders = len(tasks)
	for _, task := range tasks {
		state.progress.FolderStatuses[task.Name] = FolderPending
	}

	unprocessedSet := map[string]bool{}
	if err := runFolderWindow(ctx, input, state, tasks, seriesDir, workRoot, metadata, unprocessedSet); err != nil {
		return err
	}
	state.recount()
	state.progress.ResolvedCoreEpisodeCount = len(state.resolvedSlots)
	if unresolved := state.progress.ExpectedCoreEpisodeCount - len(state.resolvedSlots); unresolved > 0 {
		state.progress.UnresolvedCoreEpisodes = unresolved
	} else {
		state.progress.UnresolvedCoreEpisodes = 0
	}

	// Stage 4: restructure into the final layout and stage it.
	state.progress.Stage = StageStructuring
	structuredRoot := filepath.Join(workRoot, StructuredDirName, cleanShow)
	stagingShowDir := filepath.Join(input.StagingRoot, runID, cleanShow)

	extras := make([]media.SourceFile, 0, len(unprocessedSet))
	for rel := range unprocessedSet {
		extras = append(extras, media.SourceFile{
			Path:         filepath.Join(seriesDir, rel),
			RelativePath: filepath.Join("Extras", rel),
			Name:         filepath.Base(rel),
		})
	}
	sortByRelativePath(extras)

	structuring := &StructuringProgress{TotalFiles: len(state.renamed) + len(extras)}
	state.progress.StructuringProgress = structuring

	if input.DryRun {
		state.progress.CanFinalize = state.progress.FoldersFailed == 0 && len(state.renamed) > 0
		state.progress.Stage = StageCompleted
		return nil
	}

	for _, rf := range state.renamed {
		structuring.fileStarted(rf.NewFileName)
		dest := filepath.Join(structuredRoot, media.SeasonDirName(rf.SeasonNumber), rf.NewFileName)
		err := workflow.ExecuteActivity(activityCtx, a.MoveFile, MoveFileInput{
			SourcePath: rf.NewPath,
			DestPath:   dest,
		}).Get(ctx, nil)
		if err != nil {
			return err
		}
		structuring.FilesStructured++
		structuring.CurrentFile = ""
	}
	if len(extras) > 0 {
		if err := runParallelCopy(ctx, extras, structuredRoot, structuring); err != nil {
			return err
		}
	}

	var structured []media.SourceFile
	if err := workflow.ExecuteActivity(activityCtx, a.EnumerateSourceFiles, structuredRoot).Get(ctx, &structured); err != nil {
		return err
	}
	structuring.TotalFiles += len(structured)
	if err := runParallelCopy(ctx, structured, stagingShowDir, structuring); err != nil {
		return err
	}
	if err := workflow.ExecuteActivity(activityCtx, a.CaptureStagingTree, stagingShowDir).Get(ctx, &state.stagingTree); err != nil {
		return err
	}

	// Stage 5: hold for operator approval. Approval does not override
	// failed discs; the gate stays closed until the operator rejects or
	// cancels.
	state.progress.CanFinalize = state.progress.FoldersFailed == 0 && len(state.renamed) > 0
	state.progress.AwaitingFinalApproval = true
	state.progress.Stage = StageAwaitingFinalize
	for {
		if err := workflow.Await(ctx, func() bool { return state.finalize != nil }); err != nil {
			return err
		}
		decision := *state.finalize
		state.finalize = nil
		if !decision.Approved {
			return fmt.Errorf("finalize rejected by operator; staging preserved at %s", stagingShowDir)
		}
		if !state.progress.CanFinalize {
			workflow.GetLogger(ctx).Warn("finalize approved but gate is closed",
				"foldersFailed", state.progress.FoldersFailed, "episodesRenamed", len(state.renamed))
			continue
		}
		break
	}
	state.progress.AwaitingFinalApproval = false

	// Stage 6: move the staged tree to the output root, verify, clean up.
	state.progress.Stage = StageFinalizing
	var staged []media.SourceFile
	if err := workflow.ExecuteActivity(activityCtx, a.EnumerateSourceFiles, stagingShowDir).Get(ctx, &staged); err != nil {
		return err
	}
	outputShowDir := filepath.Join(input.OutputRoot, cleanShow)
	state.progress.OutputProgress = &CopyProgress{
		TotalFiles: len(staged),
		TotalBytes: media.TotalSize(staged),
	}
	if err := runParallelCopy(ctx, staged, outputShowDir, state.progress.OutputProgress); err != nil {
		return err
	}

	var report copier.VerificationReport
	err := workflow.ExecuteActivity(activityCtx, a.VerifyOutput, VerifyOutputInput{
		SourceRoot: stagingShowDir,
		OutputRoot: outputShowDir,
	}).Get(ctx, &report)
	if err != nil {
		return err
	}
	if !report.Verified {
		// Sandboxes survive so the run can be investigated and resumed.
		return fmt.Errorf("output verification failed: %d files missing or truncated", len(report.Missing))
	}

	for _, sandbox := range []string{filepath.Join(input.StagingRoot, runID), filepath.Join(input.ProcessingRoot, runID)} {
		if err := workflow.ExecuteActivity(activityCtx, a.RemoveDirectory, sandbox).Get(ctx, nil); err != nil {
			return err
		}
	}

	state.outputPath = outputShowDir
	state.progress.Stage = StageCompleted
	return nil
}

// runFolderWindow keeps at most folderConcurrency disc coordinators in
// flight. Each completion is folded into the library state before the next
// disc starts.
func runFolderWindow(
	ctx workflow.Context,
	input OrganizeLibraryInput,
	state *libraryState,
	tasks []folderTask,
	seriesDir, workRoot string,
	metadata media.SeriesMetadata,
	unprocessedSet map[string]bool,
) error {
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	selector := workflow.NewSelector(ctx)
	inFlight := 0
	next := 0
	var firstErr error

	collect := func(task folderTask, f workflow.Future) {
		var result ProcessFolderResult
		if err := f.Get(ctx, &result); err != nil {
			if ctx.Err() != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			result = ProcessFolderResult{
				FolderName: task.Name,
				Status:     FolderFailed,
				Error:      err.Error(),
			}
		}
		state.progress.FolderStatuses[task.Name] = result.Status
		state.recount()
		state.folderResults = append(state.folderResults, FolderResult{
			FolderName:      task.Name,
			Status:          result.Status,
			EpisodesRenamed: result.EpisodesRenamed,
			Error:           result.Error,
		})
		state.renamed = append(state.renamed, result.RenamedFiles...)
		for _, rf := range result.RenamedFiles {
			state.resolvedSlots[slotKey{rf.SeasonNumber, rf.EpisodeNumber}] = true
		}
		for _, rel := range result.UnprocessedFiles {
			unprocessedSet[rel] = true
		}
	}

	launch := func(task folderTask) {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-%s", runID, task.Name),
		})
		future := workflow.ExecuteChildWorkflow(childCtx, ProcessFolderWorkflow, ProcessFolderInput{
			FolderPath:          task.Path,
			FolderName:          task.Name,
			SeriesRoot:          seriesDir,
			WorkRoot:            workRoot,
			ShowName:            state.showName,
			Metadata:            metadata,
			DryRun:              input.DryRun,
			ConfidenceThreshold: input.ConfidenceThreshold,
		})
		inFlight++
		selector.AddFuture(future, func(f workflow.Future) {
			inFlight--
			collect(task, f)
		})
	}

	for next < len(tasks) || inFlight > 0 {
		for firstErr == nil && inFlight < folderConcurrency && next < len(tasks) {
			launch(tasks[next])
			next++
		}
		if inFlight == 0 {
			break
		}
		selector.Select(ctx)
	}
	return firstErr
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
