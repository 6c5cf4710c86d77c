package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/testsuite"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"sera/internal/copier"
	"sera/internal/media"
	"sera/internal/services/anilist"
)

const (
	testRunID          = "run-1"
	testInputRoot      = "/mnt/media/input"
	testProcessingRoot = "/mnt/media/processing"
	testStagingRoot    = "/mnt/media/staging"
	testOutputRoot     = "/mnt/media/output"
	testShow           = "Cosmo Chronicle"
)

func libraryInput() OrganizeLibraryInput {
	return OrganizeLibraryInput{
		SourceDir:      filepath.Join(testInputRoot, testShow),
		ProcessingRoot: testProcessingRoot,
		StagingRoot:    testStagingRoot,
		OutputRoot:     testOutputRoot,
	}
}

func libraryWorkRoot() string {
	return filepath.Join(testProcessingRoot, testRunID, testShow)
}

func newLibraryEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.SetStartWorkflowOptions(client.StartWorkflowOptions{ID: testRunID})
	env.RegisterWorkflowWithOptions(ProcessFolderWorkflow, sdkworkflow.RegisterOptions{Name: ProcessFolderWorkflowName})
	return env
}

func mockCatalogue(env *testsuite.TestWorkflowEnvironment, episodeCount int) {
	var a *Activities
	env.OnActivity(a.SearchAnime, mock.Anything, mock.Anything).Return(&anilist.SearchResult{
		ID:           7,
		TitleEnglish: testShow,
		Format:       "TV",
		Episodes:     episodeCount,
	}, nil)
	env.OnActivity(a.DiscoverSeasons, mock.Anything, 7).Return([]anilist.MinimalEntry{
		{ID: 7, TitleEnglish: testShow, Episodes: episodeCount},
	}, nil)
	env.OnActivity(a.FetchSeasonEpisodes, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in FetchEpisodesInput) ([]media.EpisodeMetadata, error) {
			episodes := make([]media.EpisodeMetadata, 0, in.ExpectedCount)
			for n := 1; n <= in.ExpectedCount; n++ {
				episodes = append(episodes, media.EpisodeMetadata{Number: n, Title: fmt.Sprintf("Chapter %d", n)})
			}
			return episodes, nil
		})
}

func mockEnumerations(env *testsuite.TestWorkflowEnvironment, sourceFiles []media.SourceFile) {
	var a *Activities
	env.OnActivity(a.EnumerateSourceFiles, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, root string) ([]media.SourceFile, error) {
			switch {
			case root == filepath.Join(testInputRoot, testShow):
				return sourceFiles, nil
			case strings.Contains(root, StructuredDirName), strings.HasPrefix(root, testStagingRoot):
				return []media.SourceFile{
					{
						Path:         filepath.Join(root, "Season 01", testShow+" - S01E01 - Chapter 1.mkv"),
						RelativePath: filepath.Join("Season 01", testShow+" - S01E01 - Chapter 1.mkv"),
						Name:         testShow + " - S01E01 - Chapter 1.mkv",
						SizeBytes:    1_000_000_000,
					},
					{
						Path:         filepath.Join(root, "Season 01", testShow+" - S01E02 - Chapter 2.mkv"),
						RelativePath: filepath.Join("Season 01", testShow+" - S01E02 - Chapter 2.mkv"),
						Name:         testShow + " - S01E02 - Chapter 2.mkv",
						SizeBytes:    1_010_000_000,
					},
				}, nil
			}
			return nil, fmt.Errorf("unexpected enumeration root %s", root)
		})
}

func sourceFixture() []media.SourceFile {
	return []media.SourceFile{
		{Path: filepath.Join(testInputRoot, testShow, "Disc 1", "title00.mkv"), RelativePath: "Disc 1/title00.mkv", Name: "title00.mkv", SizeBytes: 1_000_000_000},
		{Path: filepath.Join(testInputRoot, testShow, "Disc 1", "title01.mkv"), RelativePath: "Disc 1/title01.mkv", Name: "title01.mkv", SizeBytes: 1_010_000_000},
	}
}

func completedDiscResult() ProcessFolderResult {
	workRoot := libraryWorkRoot()
	return ProcessFolderResult{
		FolderName:      "Disc 1",
		Status:          FolderCompleted,
		TotalVideoFiles: 3,
		EpisodesRenamed: 2,
		RenamedFiles: []media.RenamedFile{
			{
				OriginalPath:         filepath.Join(workRoot, "Disc 1", "title00.mkv"),
				OriginalRelativePath: "Disc 1/title00.mkv",
				NewPath:              filepath.Join(workRoot, EpisodesDirName, "Season 01", testShow+" - S01E01 - Chapter 1.mkv"),
				NewFileName:          testShow + " - S01E01 - Chapter 1.mkv",
				SeasonNumber:         1,
				EpisodeNumber:        1,
			},
			{
				OriginalPath:         filepath.Join(workRoot, "Disc 1", "title01.mkv"),
				OriginalRelativePath: "Disc 1/title01.mkv",
				NewPath:              filepath.Join(workRoot, EpisodesDirName, "Season 01", testShow+" - S01E02 - Chapter 2.mkv"),
				NewFileName:          testShow + " - S01E02 - Chapter 2.mkv",
				SeasonNumber:         1,
				EpisodeNumber:        2,
			},
		},
		EpisodeOriginalPaths: []string{
			filepath.Join(workRoot, "Disc 1", "title00.mkv"),
			filepath.Join(workRoot, "Disc 1", "title01.mkv"),
		},
		UnprocessedFiles: []string{"Disc 1/extras.mkv"},
	}
}

func TestOrganizeLibraryHappyPath(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	env.OnActivity(a.CopyFile, mock.Anything, mock.Anything).Return(nil)
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, libraryWorkRoot()).Return([]string{"Disc 1"}, nil)
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(completedDiscResult(), nil)
	env.OnActivity(a.MoveFile, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CaptureStagingTree, mock.Anything, mock.Anything).Return(&media.TreeNode{
		Name: testShow, Type: "directory", RelativePath: ".",
	}, nil)
	env.OnActivity(a.VerifyOutput, mock.Anything, mock.Anything).Return(copier.VerificationReport{Verified: true}, nil)
	env.OnActivity(a.RemoveDirectory, mock.Anything, mock.Anything).Return(nil)

	env.RegisterDelayedCallback(func() {
		value, err := env.QueryWorkflow(QueryGetProgress)
		require.NoError(t, err)
		var progress OrganizeLibraryProgress
		require.NoError(t, value.Get(&progress))
		require.Equal(t, StageAwaitingFinalize, progress.Stage)
		require.True(t, progress.CanFinalize)
		require.True(t, progress.AwaitingFinalApproval)
		require.Equal(t, 2, progress.ResolvedCoreEpisodeCount)
		require.Zero(t, progress.UnresolvedCoreEpisodes)

		treeValue, err := env.QueryWorkflow(QueryGetStagingTree)
		require.NoError(t, err)
		var tree *media.TreeNode
		require.NoError(t, treeValue.Get(&tree))
		require.NotNil(t, tree)
		require.Equal(t, testShow, tree.Name)

		env.SignalWorkflow(SignalFinalize, FinalizeDecision{Approved: true})
	}, time.Hour)

	env.ExecuteWorkflow(OrganizeLibraryWorkflow, libraryInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageCompleted, result.Stage)
	require.Equal(t, testShow, result.ShowName)
	require.Equal(t, 1, result.FoldersCompleted)
	require.Zero(t, result.FoldersFailed)
	require.Equal(t, 2, result.TotalEpisodesRenamed)
	require.Equal(t, filepath.Join(testOutputRoot, testShow), result.OutputPath)
}

func TestOrganizeLibraryFinalizeRejectionPreservesStaging(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	env.OnActivity(a.CopyFile, mock.Anything, mock.Anything).Return(nil)
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, mock.Anything).Return([]string{"Disc 1"}, nil)
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(completedDiscResult(), nil)
	env.OnActivity(a.MoveFile, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CaptureStagingTree, mock.Anything, mock.Anything).Return(&media.TreeNode{Name: testShow, Type: "directory"}, nil)
	// VerifyOutput and RemoveDirectory are unmocked on purpose: a rejected
	// finalize must never reach them.

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalFinalize, FinalizeDecision{Approved: false})
	}, time.Hour)

	env.ExecuteWorkflow(OrganizeLibraryWorkflow, libraryInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageFailed, result.Stage)
	require.Contains(t, result.Error, "finalize rejected")
	require.Contains(t, result.Error, testStagingRoot)
}

func TestOrganizeLibraryVerificationFailurePreservesSandboxes(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	env.OnActivity(a.CopyFile, mock.Anything, mock.Anything).Return(nil)
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, mock.Anything).Return([]string{"Disc 1"}, nil)
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(completedDiscResult(), nil)
	env.OnActivity(a.MoveFile, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CaptureStagingTree, mock.Anything, mock.Anything).Return(&media.TreeNode{Name: testShow, Type: "directory"}, nil)
	env.OnActivity(a.VerifyOutput, mock.Anything, mock.Anything).Return(copier.VerificationReport{
		Verified: false,
		Missing:  []string{"Season 01/" + testShow + " - S01E02 - Chapter 2.mkv"},
	}, nil)
	// RemoveDirectory unmocked: sandboxes must survive a failed verification.

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalFinalize, FinalizeDecision{Approved: true})
	}, time.Hour)

	env.ExecuteWorkflow(OrganizeLibraryWorkflow, libraryInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageFailed, result.Stage)
	require.Contains(t, result.Error, "verification failed")
}

func TestOrganizeLibraryFailedDiscClosesFinalizeGate(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	env.OnActivity(a.CopyFile, mock.Anything, mock.Anything).Return(nil)
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, mock.Anything).Return([]string{"Disc 1", "Disc 2"}, nil)
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(
		func(ctx sdkworkflow.Context, in ProcessFolderInput) (ProcessFolderResult, error) {
			if in.FolderName == "Disc 2" {
				return ProcessFolderResult{
					FolderName: "Disc 2",
					Status:     FolderFailed,
					Error:      "no subtitles could be extracted from any episode file",
				}, nil
			}
			return completedDiscResult(), nil
		})
	env.OnActivity(a.MoveFile, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CaptureStagingTree, mock.Anything, mock.Anything).Return(&media.TreeNode{Name: testShow, Type: "directory"}, nil)

	// Approval cannot open a gate closed by a failed disc; the run only ends
	// when the operator rejects.
	env.RegisterDelayedCallback(func() {
		value, err := env.QueryWorkflow(QueryGetProgress)
		require.NoError(t, err)
		var progress OrganizeLibraryProgress
		require.NoError(t, value.Get(&progress))
		require.Equal(t, StageAwaitingFinalize, progress.Stage)
		require.False(t, progress.CanFinalize)
		require.Equal(t, 1, progress.FoldersFailed)

		env.SignalWorkflow(SignalFinalize, FinalizeDecision{Approved: true})
	}, time.Hour)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalFinalize, FinalizeDecision{Approved: false})
	}, 2*time.Hour)

	env.ExecuteWorkflow(OrganizeLibraryWorkflow, libraryInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageFailed, result.Stage)
	require.Equal(t, 1, result.FoldersFailed)
	require.Contains(t, result.Error, "finalize rejected")
}

func TestOrganizeLibraryMetadataPhaseProgression(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	// The first traversal attempt fails transiently so the retry window
	// leaves the traversing phase observable mid-flight.
	env.OnActivity(a.DiscoverSeasons, mock.Anything, 7).Return(
		([]anilist.MinimalEntry)(nil), errors.New("anilist: 502 bad gateway")).Once()
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, filepath.Join(testInputRoot, testShow)).Return([]string{"Disc 1"}, nil)
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(completedDiscResult(), nil)

	env.RegisterDelayedCallback(func() {
		value, err := env.QueryWorkflow(QueryGetProgress)
		require.NoError(t, err)
		var progress OrganizeLibraryProgress
		require.NoError(t, value.Get(&progress))
		require.Equal(t, StageFetchingMetadata, progress.Stage)
		require.NotNil(t, progress.MetadataSummary)
		require.Equal(t, "traversing", progress.MetadataSummary.Status)
		require.Equal(t, testShow, progress.MetadataSummary.AnimeName)
	}, 2*time.Second)

	input := libraryInput()
	input.DryRun = true
	env.ExecuteWorkflow(OrganizeLibraryWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	value, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress OrganizeLibraryProgress
	require.NoError(t, value.Get(&progress))
	ms := progress.MetadataSummary
	require.NotNil(t, ms)
	require.Equal(t, "complete", ms.Status)
	require.Equal(t, 1, ms.SeasonCount)
	require.Equal(t, 2, ms.TotalEpisodes)
}

func TestOrganizeLibraryCatalogueMissFails(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	env.OnActivity(a.CopyFile, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.SearchAnime, mock.Anything, mock.Anything).Return((*anilist.SearchResult)(nil), nil)

	env.ExecuteWorkflow(OrganizeLibraryWorkflow, libraryInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageFailed, result.Stage)
	require.Contains(t, result.Error, "no catalogue match")
}

func TestOrganizeLibraryDryRunWritesNothing(t *testing.T) {
	env := newLibraryEnv(t)
	var a *Activities

	mockEnumerations(env, sourceFixture())
	mockCatalogue(env, 2)
	env.OnActivity(a.ListFolders, mock.Anything, filepath.Join(testInputRoot, testShow)).Return([]string{"Disc 1"}, nil)
	dryResult := completedDiscResult()
	env.OnWorkflow(ProcessFolderWorkflow, mock.Anything, mock.Anything).Return(
		func(ctx sdkworkflow.Context, in ProcessFolderInput) (ProcessFolderResult, error) {
			require.True(t, in.DryRun)
			require.Equal(t, filepath.Join(testInputRoot, testShow), in.SeriesRoot)
			require.Equal(t, libraryWorkRoot(), in.WorkRoot)
			return dryResult, nil
		})
	// CopyFile, MoveFile, VerifyOutput, and RemoveDirectory stay unmocked: a
	// dry run must not schedule any of them.

	input := libraryInput()
	input.DryRun = true
	env.ExecuteWorkflow(OrganizeLibraryWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result OrganizeLibraryResult
	require.NoError(t, env.GetWorkflowResult(&result))

	require.Equal(t, StageCompleted, result.Stage)
	require.Equal(t, 2, result.TotalEpisodesRenamed)
	require.Empty(t, result.OutputPath)
}
