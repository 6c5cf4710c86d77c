package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sera/internal/services"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,000
<i>Long ago, a hero set out.</i>

2
00:00:04,000 --> 00:00:06,000
His journey lasted ten years.
And then it ended.
`

const sampleASS = `[Script Info]
Title: sample

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:03.00,Default,,0,0,0,,{\i1}Long ago, a hero set out.{\i0}
Dialogue: 0,0:00:04.00,0:00:06.00,Default,,0,0,0,,His journey lasted ten years.\NAnd then, it ended.
`

func TestRunCommandTagsToolFailures(t *testing.T) {
	err := runCommand(context.Background(), "no-such-tool-anywhere")
	if err == nil {
		t.Fatal("expected an error for a missing tool")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("error not tagged as external tool failure: %v", err)
	}
}

func TestPlainTextFromSRT(t *testing.T) {
	got := PlainText("x.srt", []byte(sampleSRT))
	want := "Long ago, a hero set out.\nHis journey lasted ten years.\nAnd then it ended."
	if got != want {
		t.Errorf("PlainText srt = %q, want %q", got, want)
	}
}

func TestPlainTextFromASS(t *testing.T) {
	got := PlainText("x.ass", []byte(sampleASS))
	want := "Long ago, a hero set out.\nHis journey lasted ten years.\nAnd then, it ended."
	if got != want {
		t.Errorf("PlainText ass = %q, want %q", got, want)
	}
}

func TestExtractUsesCachedTranscript(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "_subtitles", "Disc 01")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "ep01.txt"), []byte("cached dialogue"), 0o644); err != nil {
		t.Fatal(err)
	}

	ran := false
	e := NewExtractor(nil,
		WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
			ran = true
			return nil
		}),
		WithProbeRunner(func(ctx context.Context, path string) ([]byte, error) {
			ran = true
			return []byte(`{"streams":[]}`), nil
		}),
	)
	result, err := e.Extract(context.Background(), Request{
		MediaPath: filepath.Join(dir, "Disc 01", "ep01.mkv"),
		MediaName: "ep01.mkv",
		TargetDir: target,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || result.Content != "cached dialogue" {
		t.Fatalf("got %+v, want cached content", result)
	}
	if ran {
		t.Error("external tools ran despite cache hit")
	}
}

func TestExtractSidecarFallback(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "ep02.mkv")
	if err := os.WriteFile(mediaPath, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ep02.srt"), []byte(sampleSRT), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "_subtitles", "d")

	e := NewExtractor(nil,
		WithProbeRunner(func(ctx context.Context, path string) ([]byte, error) {
			return []byte(`{"streams":[]}`), nil
		}),
	)
	result, err := e.Extract(context.Background(), Request{MediaPath: mediaPath, MediaName: "ep02.mkv", TargetDir: target})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected sidecar result")
	}
	if result.Source != "external" {
		t.Errorf("source = %q, want external", result.Source)
	}
	if !strings.Contains(result.Content, "journey lasted ten years") {
		t.Errorf("content = %q", result.Content)
	}
	// The transcript is persisted for idempotent replays.
	if _, err := os.Stat(filepath.Join(target, "ep02.txt")); err != nil {
		t.Errorf("transcript not cached: %v", err)
	}
}

func TestExtractEmbeddedTrack(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "ep03.mkv")
	if err := os.WriteFile(mediaPath, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "_subtitles", "d")

	e := NewExtractor(nil,
		WithProbeRunner(func(ctx context.Context, path string) ([]byte, error) {
			return []byte(`{"streams":[
				{"index":0,"codec_type":"video","codec_name":"hevc"},
				{"index":2,"codec_type":"subtitle","codec_name":"subrip","tags":{"language":"eng"}},
				{"index":3,"codec_type":"subtitle","codec_name":"hdmv_pgs_subtitle"}
			]}`), nil
		}),
		WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
			if name != mkvextractCommand {
				t.Errorf("tool = %q, want mkvextract for .mkv", name)
			}
			// "tracks", media, "2:<tmp>"
			spec := args[len(args)-1]
			if !strings.HasPrefix(spec, "2:") {
				t.Errorf("track spec = %q, want index 2", spec)
			}
			return os.WriteFile(strings.TrimPrefix(spec, "2:"), []byte(sampleSRT), 0o644)
		}),
	)
	result, err := e.Extract(context.Background(), Request{MediaPath: mediaPath, MediaName: "ep03.mkv", TargetDir: target})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected embedded result")
	}
	if result.Source != "embedded" || result.Language != "eng" {
		t.Errorf("source/language = %q/%q", result.Source, result.Language)
	}
	if !strings.Contains(result.Content, "a hero set out") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestExtractNoSubtitlesReturnsNil(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "menu.mkv")
	if err := os.WriteFile(mediaPath, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor(nil,
		WithProbeRunner(func(ctx context.Context, path string) ([]byte, error) {
			return []byte(`{"streams":[]}`), nil
		}),
	)
	result, err := e.Extract(context.Background(), Request{MediaPath: mediaPath, MediaName: "menu.mkv", TargetDir: filepath.Join(dir, "_subtitles", "d")})
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
}
