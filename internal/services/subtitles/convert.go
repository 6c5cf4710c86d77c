package subtitles

import (
	"path/filepath"
	"regexp"
	"strings"
)

// PlainText converts raw subtitle bytes to dialogue-only text, dispatching
// on the file extension. Unknown formats are treated as already plain.
func PlainText(path string, raw []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt", ".vtt":
		return plainTextFromSRT(string(raw))
	case ".ass", ".ssa":
		return plainTextFromASS(string(raw))
	default:
		return strings.TrimSpace(string(raw))
	}
}

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	assTagPattern  = regexp.MustCompile(`\{[^}]*\}`)
	cueIndex       = regexp.MustCompile(`^\d+$`)
)

func plainTextFromSRT(content string) string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var lines []string
	for _, block := range strings.Split(normalized, "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || cueIndex.MatchString(line) {
				continue
			}
			if strings.Contains(line, "-->") {
				continue
			}
			if strings.EqualFold(line, "WEBVTT") {
				continue
			}
			line = htmlTagPattern.ReplaceAllString(line, "")
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// plainTextFromASS pulls the text field from Dialogue events. The event
// format fixes nine commas before the text; embedded commas after that
// belong to the dialogue.
func plainTextFromASS(content string) string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Dialogue:") {
			continue
		}
		parts := strings.SplitN(line, ",", 10)
		if len(parts) < 10 {
			continue
		}
		text := parts[9]
		text = assTagPattern.ReplaceAllString(text, "")
		text = strings.ReplaceAll(text, `\N`, "\n")
		text = strings.ReplaceAll(text, `\n`, "\n")
		for _, fragment := range strings.Split(text, "\n") {
			if fragment = strings.TrimSpace(fragment); fragment != "" {
				lines = append(lines, fragment)
			}
		}
	}
	return strings.Join(lines, "\n")
}
