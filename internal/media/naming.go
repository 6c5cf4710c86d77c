package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// videoExtensions is the set of extensions treated as episode candidates.
var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".avi":  {},
	".webm": {},
	".m4v":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
}

// IsVideoFile reports whether the file name carries a known video extension.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// invalidNameChars are forbidden in directory and file names on the
// filesystems the library targets.
var invalidNameChars = strings.NewReplacer(
	"<", "",
	">", "",
	":", "",
	"\"", "",
	"/", "",
	"\\", "",
	"|", "",
	"?", "",
	"*", "",
)

// CleanShowName strips filesystem-invalid characters and collapses runs of
// whitespace. Titles from the catalogue are NFC-normalised first so visually
// identical names produce identical directories.
func CleanShowName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = invalidNameChars.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// SeasonDirName returns the canonical season directory name.
func SeasonDirName(seasonNumber int) string {
	return fmt.Sprintf("Season %02d", seasonNumber)
}

// EpisodeFileName builds the Plex-style file name
// "<Show> - S<ss>E<ee>[ - <Title>].<ext>". The extension is taken from the
// original file name, lowercased.
func EpisodeFileName(showName string, seasonNumber, episodeNumber int, episodeTitle, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := fmt.Sprintf("%s - S%02dE%02d", CleanShowName(showName), seasonNumber, episodeNumber)
	if title := CleanShowName(episodeTitle); title != "" {
		base += " - " + title
	}
	return base + ext
}

var seasonEpisodePattern = regexp.MustCompile(`(?i)S(\d{2,4})E(\d{2,4})`)

// ParseSeasonEpisode recovers the (season, episode) pair from a Plex-named
// file. This is the round-trip inverse of EpisodeFileName.
func ParseSeasonEpisode(fileName string) (season, episode int, ok bool) {
	m := seasonEpisodePattern.FindStringSubmatch(fileName)
	if m == nil {
		return 0, 0, false
	}
	season, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	episode, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return season, episode, true
}

// qualityTokens are release-name noise removed before catalogue search.
var qualityTokens = []string{
	"1080p", "720p", "480p", "2160p", "4K",
	"x264", "x265", "HEVC", "AVC", "FLAC", "AAC",
	"BD", "BluRay", "BDRip", "WEB-DL", "WEBRip",
}

var (
	bracketGroupPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	seasonTokenPattern  = regexp.MustCompile(`(?i)\bS(\d+)\b`)
	separatorPattern    = regexp.MustCompile(`[_.\-]+`)
	qualityPattern      = buildQualityPattern()
)

func buildQualityPattern() *regexp.Regexp {
	quoted := make([]string, len(qualityTokens))
	for i, token := range qualityTokens {
		quoted[i] = regexp.QuoteMeta(token)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// CleanSearchName turns a release-style folder name into a catalogue query:
// bracket groups and quality tokens go, "S2" becomes "Season 2", separator
// runs become spaces. Quality tokens are removed before separators are
// rewritten so hyphenated tokens like WEB-DL match intact.
func CleanSearchName(folderName string) string {
	name := bracketGroupPattern.ReplaceAllString(folderName, " ")
	name = qualityPattern.ReplaceAllString(name, " ")
	name = seasonTokenPattern.ReplaceAllString(name, "Season $1")
	name = separatorPattern.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

// ResolveShowName picks the display name for a series: the first season's
// English title, else its romaji title, else the source directory basename.
func ResolveShowName(metadata SeriesMetadata, sourceDir string) string {
	if len(metadata.Seasons) > 0 {
		first := metadata.Seasons[0]
		if title := strings.TrimSpace(first.TitleEnglish); title != "" {
			return title
		}
		if title := strings.TrimSpace(first.TitleRomaji); title != "" {
			return title
		}
	}
	return filepath.Base(sourceDir)
}
