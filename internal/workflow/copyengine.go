package workflow

import (
	"path/filepath"

	"go.temporal.io/sdk/workflow"

	"sera/internal/media"
)

// Reserved working directories inside a series processing sandbox. The
// leading underscore keeps enumeration of original content away from
// pipeline artifacts.
const (
	EpisodesDirName   = "_episodes"
	StructuredDirName = "_structured"
	SubtitlesDirName  = "_subtitles"
)

// copySink receives per-file progress from the parallel copy window so
// different stages can project it into their own progress shapes.
type copySink interface {
	fileStarted(name string)
	fileFinished(file media.SourceFile)
	fileAborted(file media.SourceFile)
}

// runParallelCopy copies files from sourceRoot to destRoot preserving
// relative paths, keeping at most copyConcurrency transfers in flight. Each
// completion updates the sink before the next file starts, so a progress
// query between any two events sees consistent counters. On the first
// failure no new transfers start; in-flight ones drain before the error is
// returned.
func runParallelCopy(ctx workflow.Context, files []media.SourceFile, destRoot string, sink copySink) error {
	ctx = withCopyActivityOptions(ctx)
	var a *Activities

	selector := workflow.NewSelector(ctx)
	var firstErr error
	inFlight := 0
	next := 0

	launch := func(file media.SourceFile) {
		input := CopyFileInput{
			SourcePath: file.Path,
			DestPath:   filepath.Join(destRoot, file.RelativePath),
		}
		future := workflow.ExecuteActivity(ctx, a.CopyFile, input)
		sink.fileStarted(file.Name)
		inFlight++
		selector.AddFuture(future, func(f workflow.Future) {
			inFlight--
			if err := f.Get(ctx, nil); err != nil {
				sink.fileAborted(file)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			sink.fileFinished(file)
		})
	}

	for next < len(files) || inFlight > 0 {
		for firstErr == nil && inFlight < copyConcurrency && next < len(files) {
			launch(files[next])
			next++
		}
		if inFlight == 0 {
			break
		}
		selector.Select(ctx)
	}
	return firstErr
}
