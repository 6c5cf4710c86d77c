package matcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"sera/internal/media"
)

func seriesFixture() media.SeriesMetadata {
	return media.SeriesMetadata{Seasons: []media.SeasonMetadata{
		{SeasonNumber: 1, EpisodeCount: 2, Episodes: []media.EpisodeMetadata{
			{Number: 1, Title: "Beginnings"},
			{Number: 2, Title: "Departures"},
		}},
	}}
}

func TestTruncateProportionally(t *testing.T) {
	subs := []media.SubtitleFile{
		{FileName: "a.txt", Content: strings.Repeat("a", 600)},
		{FileName: "b.txt", Content: strings.Repeat("b", 300)},
		{FileName: "c.txt", Content: strings.Repeat("c", 100)},
	}
	out := TruncateProportionally(subs, 500)

	var total int
	for _, sub := range out {
		total += len(sub.Content)
	}
	if total > 500 {
		t.Errorf("total = %d, want <= 500", total)
	}
	// Shares stay proportional: a keeps twice b's budget, b three times c's.
	if len(out[0].Content) != 300 || len(out[1].Content) != 150 || len(out[2].Content) != 50 {
		t.Errorf("lengths = %d,%d,%d", len(out[0].Content), len(out[1].Content), len(out[2].Content))
	}
	// Inputs untouched.
	if len(subs[0].Content) != 600 {
		t.Error("input mutated")
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// Three-byte runes with a budget that lands mid-rune: the cut must back
	// off to a boundary instead of leaving a broken sequence.
	subs := []media.SubtitleFile{
		{FileName: "jp.txt", Content: strings.Repeat("話", 100)},
	}
	out := TruncateProportionally(subs, 200)

	content := out[0].Content
	if len(content) >= 300 {
		t.Fatalf("content not truncated, len = %d", len(content))
	}
	if !utf8.ValidString(content) {
		t.Errorf("truncated content is not valid UTF-8: %q", content[len(content)-6:])
	}
	if len(content)%3 != 0 {
		t.Errorf("cut mid-rune, len = %d", len(content))
	}
}

func TestTruncateUnderBudgetIsNoop(t *testing.T) {
	subs := []media.SubtitleFile{{FileName: "a", Content: "short"}}
	out := TruncateProportionally(subs, 100)
	if out[0].Content != "short" {
		t.Errorf("content = %q", out[0].Content)
	}
}

func TestBuildPromptContainsCatalogueAndFiles(t *testing.T) {
	prompt := BuildPrompt([]media.SubtitleFile{
		{FileName: "ep1.txt", Content: "hello there"},
	}, seriesFixture())

	for _, want := range []string{"Season 1", "S01E02: Departures", "=== FILE: ep1.txt ===", "hello there"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDecodeModelJSONHandlesFences(t *testing.T) {
	var out MatchResult
	fenced := "```json\n{\"matches\":[{\"fileName\":\"a.mkv\",\"seasonNumber\":1,\"episodeNumber\":1,\"confidence\":0.9}]}\n```"
	if err := DecodeModelJSON(fenced, &out); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if len(out.Matches) != 1 || out.Matches[0].SeasonNumber != 1 {
		t.Errorf("unexpected result %+v", out)
	}

	prose := "Here is the result: {\"matches\":[]} Hope that helps!"
	if err := DecodeModelJSON(prose, &out); err != nil {
		t.Fatalf("DecodeModelJSON prose: %v", err)
	}
}

func TestMatchEpisodesValidatesAtBoundary(t *testing.T) {
	response := `{"matches":[
		{"fileName":"ep1.mkv","seasonNumber":1,"episodeNumber":1,"confidence":1.4,"reasoning":"ok"},
		{"fileName":"ep2.mkv","seasonNumber":1,"episodeNumber":9,"confidence":0.9,"reasoning":"bad slot"},
		{"fileName":"ghost.mkv","seasonNumber":1,"episodeNumber":2,"confidence":0.9,"reasoning":"unknown file"}
	]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}],"stop_reason":"end_turn"}`, response)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "claude-3-5-haiku-latest"})
	result, err := client.MatchEpisodes(context.Background(),
		[]media.SubtitleFile{
			{FileName: "ep1.mkv", FilePath: "/p/ep1.mkv", Content: "dialogue one"},
			{FileName: "ep2.mkv", FilePath: "/p/ep2.mkv", Content: "dialogue two"},
		}, seriesFixture())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches, want 1 (invalid slot and unknown file dropped): %+v", len(result.Matches), result.Matches)
	}
	match := result.Matches[0]
	if match.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", match.Confidence)
	}
	if match.FilePath != "/p/ep1.mkv" {
		t.Errorf("file path not backfilled: %q", match.FilePath)
	}
	if match.EpisodeTitle != "Beginnings" {
		t.Errorf("episode title not backfilled: %q", match.EpisodeTitle)
	}
}

func TestMatchEpisodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	_, err := client.MatchEpisodes(context.Background(),
		[]media.SubtitleFile{{FileName: "a.mkv", Content: "x"}}, seriesFixture())
	if err == nil || !strings.Contains(err.Error(), "http 429") {
		t.Fatalf("expected http 429 error, got %v", err)
	}
}
