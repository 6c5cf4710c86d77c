package media

import "testing"

func TestCleanShowName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Frieren", "Frieren"},
		{"invalid chars", `Re:Zero <Starting Life/in\Another|World?>*`, "ReZero Starting LifeinAnotherWorld"},
		{"whitespace collapse", "  Attack   on\tTitan  ", "Attack on Titan"},
		{"quotes", `"Oshi no Ko"`, "Oshi no Ko"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanShowName(tt.in); got != tt.want {
				t.Errorf("CleanShowName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEpisodeFileName(t *testing.T) {
	got := EpisodeFileName("Frieren", 1, 7, "Like a Fairy Tale", "ep07.MKV")
	want := "Frieren - S01E07 - Like a Fairy Tale.mkv"
	if got != want {
		t.Errorf("EpisodeFileName = %q, want %q", got, want)
	}

	got = EpisodeFileName("Frieren", 2, 12, "", "file.mp4")
	want = "Frieren - S02E12.mp4"
	if got != want {
		t.Errorf("EpisodeFileName without title = %q, want %q", got, want)
	}
}

func TestParseSeasonEpisodeRoundTrip(t *testing.T) {
	for _, tc := range []struct{ season, episode int }{{1, 1}, {2, 12}, {10, 24}} {
		name := EpisodeFileName("Show", tc.season, tc.episode, "Title: With Colon", "x.mkv")
		season, episode, ok := ParseSeasonEpisode(name)
		if !ok {
			t.Fatalf("ParseSeasonEpisode(%q) not ok", name)
		}
		if season != tc.season || episode != tc.episode {
			t.Errorf("round trip %q = (%d,%d), want (%d,%d)", name, season, episode, tc.season, tc.episode)
		}
	}
}

func TestParseSeasonEpisodeRejectsPlainNames(t *testing.T) {
	if _, _, ok := ParseSeasonEpisode("menu.mkv"); ok {
		t.Error("expected no match for menu.mkv")
	}
}

func TestCleanSearchName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"release groups", "[SubsPlease] Sousou no Frieren (1080p) [Batch]", "Sousou no Frieren"},
		{"quality tokens", "Frieren.S2.1080p.BluRay.x265-FLAC", "Frieren Season 2"},
		{"separators", "mushoku_tensei-season_one", "mushoku tensei season one"},
		{"webdl", "Bocchi the Rock WEB-DL HEVC", "Bocchi the Rock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanSearchName(tt.in); got != tt.want {
				t.Errorf("CleanSearchName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveShowName(t *testing.T) {
	md := SeriesMetadata{Seasons: []SeasonMetadata{{SeasonNumber: 1, TitleEnglish: "Frieren: Beyond Journey's End", TitleRomaji: "Sousou no Frieren"}}}
	if got := ResolveShowName(md, "/in/frieren"); got != "Frieren: Beyond Journey's End" {
		t.Errorf("ResolveShowName english = %q", got)
	}
	md.Seasons[0].TitleEnglish = ""
	if got := ResolveShowName(md, "/in/frieren"); got != "Sousou no Frieren" {
		t.Errorf("ResolveShowName romaji = %q", got)
	}
	if got := ResolveShowName(SeriesMetadata{}, "/in/frieren"); got != "frieren" {
		t.Errorf("ResolveShowName fallback = %q", got)
	}
}

func TestSeriesMetadataLookups(t *testing.T) {
	md := SeriesMetadata{Seasons: []SeasonMetadata{
		{SeasonNumber: 1, EpisodeCount: 2, Episodes: []EpisodeMetadata{{Number: 1, Title: "First"}, {Number: 2}}},
		{SeasonNumber: 2, EpisodeCount: 3},
	}}
	if md.TotalEpisodes() != 5 {
		t.Errorf("TotalEpisodes = %d, want 5", md.TotalEpisodes())
	}
	if title := md.EpisodeTitleOrDefault(1, 1); title != "First" {
		t.Errorf("EpisodeTitleOrDefault(1,1) = %q", title)
	}
	if title := md.EpisodeTitleOrDefault(2, 3); title != "Episode 3" {
		t.Errorf("EpisodeTitleOrDefault(2,3) = %q", title)
	}
	if _, ok := md.FindEpisode(2, 4); ok {
		t.Error("FindEpisode(2,4) should fail, season has 3 episodes")
	}
	if _, ok := md.FindEpisode(3, 1); ok {
		t.Error("FindEpisode(3,1) should fail, no season 3")
	}
}
