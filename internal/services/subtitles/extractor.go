// Package subtitles extracts a plain-text dialogue representation for each
// video file, preferring embedded subtitle tracks (mkvextract/ffmpeg) and
// falling back to sidecar files. Results are cached as idempotent .txt files
// under the disc's working directory.
package subtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sera/internal/logging"
	"sera/internal/media"
	"sera/internal/services"
)

const (
	mkvextractCommand = "mkvextract"
	ffmpegCommand     = "ffmpeg"
	ffprobeCommand    = "ffprobe"
)

// Request identifies one video file and the directory its transcript
// belongs in.
type Request struct {
	MediaPath string `json:"mediaPath"`
	MediaName string `json:"mediaName"`
	TargetDir string `json:"targetDir"`
}

// CommandRunner executes an external tool. Swapped out in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ProbeRunner returns the raw ffprobe stream listing for a media file.
type ProbeRunner func(ctx context.Context, path string) ([]byte, error)

// Extractor produces plain-text transcripts for video files.
type Extractor struct {
	run    CommandRunner
	probe  ProbeRunner
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCommandRunner overrides how external tools are executed.
func WithCommandRunner(run CommandRunner) Option {
	return func(e *Extractor) {
		if run != nil {
			e.run = run
		}
	}
}

// WithProbeRunner overrides how streams are probed.
func WithProbeRunner(probe ProbeRunner) Option {
	return func(e *Extractor) {
		if probe != nil {
			e.probe = probe
		}
	}
}

// NewExtractor constructs an extractor shelling out to the system tools.
func NewExtractor(logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		run:    runCommand,
		probe:  probeStreams,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var sidecarExtensions = []string{".srt", ".ass", ".ssa", ".vtt", ".txt"}

// Extract returns the plain-text transcript for one video file, or nil when
// the file carries no usable dialogue. A cached transcript is returned
// verbatim so replays and retries never re-run the external tools.
func (e *Extractor) Extract(ctx context.Context, req Request) (*media.SubtitleFile, error) {
	if strings.TrimSpace(req.MediaPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "validate input", "media path is empty", nil)
	}
	if strings.TrimSpace(req.TargetDir) == "" {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "validate input", "target directory is empty", nil)
	}
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "subtitles", "ensure target dir", "failed to create subtitles directory", err)
	}

	base := strings.TrimSuffix(req.MediaName, filepath.Ext(req.MediaName))
	txtPath := filepath.Join(req.TargetDir, base+".txt")

	if content, err := os.ReadFile(txtPath); err == nil {
		source := "embedded"
		if sidecarPath(req.MediaPath) != "" {
			source = "external"
		}
		return &media.SubtitleFile{
			FilePath: txtPath,
			FileName: base + ".txt",
			Content:  string(content),
			Source:   source,
		}, nil
	}

	text, source, language := e.extractText(ctx, req)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "subtitles", "write transcript", "failed to persist transcript", err)
	}
	return &media.SubtitleFile{
		FilePath: txtPath,
		FileName: base + ".txt",
		Content:  text,
		Source:   source,
		Language: language,
	}, nil
}

func (e *Extractor) extractText(ctx context.Context, req Request) (text, source, language string) {
	if text, language = e.extractEmbedded(ctx, req); text != "" {
		return text, "embedded", language
	}
	if path := sidecarPath(req.MediaPath); path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if text = PlainText(path, raw); text != "" {
				return text, "external", ""
			}
		}
	}
	return "", "", ""
}

func (e *Extractor) extractEmbedded(ctx context.Context, req Request) (string, string) {
	streams, err := e.probeSubtitleStreams(ctx, req.MediaPath)
	if err != nil || len(streams) == 0 {
		if err != nil && e.logger != nil {
			e.logger.Debug("subtitle probe failed",
				logging.String("file", req.MediaName),
				logging.Error(err),
			)
		}
		return "", ""
	}
	track := streams[0]

	tmp, err := os.CreateTemp(req.TargetDir, "extract-*"+track.extension())
	if err != nil {
		return "", ""
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if strings.EqualFold(filepath.Ext(req.MediaPath), ".mkv") {
		err = e.run(ctx, mkvextractCommand, "tracks", req.MediaPath, fmt.Sprintf("%d:%s", track.Index, tmpPath))
	} else {
		err = e.run(ctx, ffmpegCommand,
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", req.MediaPath,
			"-map", fmt.Sprintf("0:%d", track.Index),
			tmpPath,
		)
	}
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("embedded subtitle extraction failed",
				logging.String("file", req.MediaName),
				logging.Error(err),
			)
		}
		return "", ""
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", ""
	}
	return PlainText(tmpPath, raw), track.Language
}

type subtitleStream struct {
	Index     int
	CodecName string
	Language  string
}

func (s subtitleStream) extension() string {
	switch s.CodecName {
	case "ass", "ssa":
		return ".ass"
	default:
		return ".srt"
	}
}

var textSubtitleCodecs = map[string]struct{}{
	"subrip": {}, "srt": {}, "ass": {}, "ssa": {}, "mov_text": {}, "webvtt": {},
}

func (e *Extractor) probeSubtitleStreams(ctx context.Context, path string) ([]subtitleStream, error) {
	raw, err := e.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Streams []struct {
			Index     int    `json:"index"`
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Tags      struct {
				Language string `json:"language"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	var streams []subtitleStream
	for _, stream := range payload.Streams {
		if stream.CodecType != "subtitle" {
			continue
		}
		if _, ok := textSubtitleCodecs[stream.CodecName]; !ok {
			continue
		}
		streams = append(streams, subtitleStream{
			Index:     stream.Index,
			CodecName: stream.CodecName,
			Language:  stream.Tags.Language,
		})
	}
	return streams, nil
}

func sidecarPath(mediaPath string) string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	for _, ext := range sidecarExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "subtitles", name, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

func probeStreams(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ffprobeCommand,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "subtitles", ffprobeCommand, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}
