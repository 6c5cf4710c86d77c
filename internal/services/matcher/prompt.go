package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sera/internal/media"
)

// MaxPromptChars caps the total subtitle text sent to the model. Oversized
// batches are truncated proportionally per file so every file keeps a share
// of the budget.
const MaxPromptChars = 500_000

const systemPrompt = `You match anime episode files to their catalogue entries using dialogue transcripts.
For every input file, decide which (season, episode) slot of the provided series it contains.
Respond with JSON only, matching this schema exactly:
{"matches":[{"fileName":"...","filePath":"...","seasonNumber":1,"episodeNumber":1,"episodeTitle":"...","confidence":0.0,"reasoning":"..."}]}
confidence is your certainty in [0,1]. reasoning is one short sentence citing the dialogue evidence.
Every input file must appear in matches exactly once.`

// BuildPrompt renders the user prompt: the season/episode catalogue followed
// by one transcript block per file.
func BuildPrompt(subtitles []media.SubtitleFile, metadata media.SeriesMetadata) string {
	truncated := TruncateProportionally(subtitles, MaxPromptChars)

	var b strings.Builder
	b.WriteString("Series catalogue:\n")
	for _, season := range metadata.Seasons {
		title := season.TitleEnglish
		if title == "" {
			title = season.TitleRomaji
		}
		fmt.Fprintf(&b, "Season %d: %s (%d episodes)\n", season.SeasonNumber, title, season.EpisodeCount)
		for _, ep := range season.Episodes {
			if strings.TrimSpace(ep.Title) == "" {
				continue
			}
			fmt.Fprintf(&b, "  S%02dE%02d: %s\n", season.SeasonNumber, ep.Number, ep.Title)
			if desc := strings.TrimSpace(ep.Description); desc != "" {
				fmt.Fprintf(&b, "    %s\n", desc)
			}
		}
	}

	b.WriteString("\nFiles to match:\n")
	for _, sub := range truncated {
		fmt.Fprintf(&b, "\n=== FILE: %s ===\n%s\n", sub.FileName, sub.Content)
	}
	return b.String()
}

// TruncateProportionally shrinks subtitle contents so their combined length
// fits the budget, scaling each file by the same factor. Inputs are not
// mutated.
func TruncateProportionally(subtitles []media.SubtitleFile, budget int) []media.SubtitleFile {
	var total int
	for _, sub := range subtitles {
		total += len(sub.Content)
	}
	if total <= budget || total == 0 {
		return subtitles
	}
	scale := float64(budget) / float64(total)
	out := make([]media.SubtitleFile, len(subtitles))
	for i, sub := range subtitles {
		keep := int(float64(len(sub.Content)) * scale)
		if keep < 0 {
			keep = 0
		}
		if keep < len(sub.Content) {
			// Back off to a rune boundary so a multi-byte character is never
			// split mid-sequence.
			for keep > 0 && !utf8.RuneStart(sub.Content[keep]) {
				keep--
			}
			sub.Content = sub.Content[:keep]
		}
		out[i] = sub
	}
	return out
}
