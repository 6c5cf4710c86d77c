// Package anilist implements the anime catalogue client. It speaks the
// AniList GraphQL API: title search, prequel/sequel relation traversal, and
// per-season episode lists.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"sera/internal/media"
)

// DefaultBaseURL is the public AniList GraphQL endpoint.
const DefaultBaseURL = "https://graphql.anilist.co"

// SearchResult is the first catalogue hit for a cleaned series name.
type SearchResult struct {
	ID           int    `json:"id"`
	TitleRomaji  string `json:"titleRomaji"`
	TitleEnglish string `json:"titleEnglish"`
	Format       string `json:"format"`
	Episodes     int    `json:"episodes"`
}

// MinimalEntry is one TV entry in a series' relation chain, in broadcast
// order.
type MinimalEntry struct {
	ID           int    `json:"id"`
	TitleRomaji  string `json:"titleRomaji"`
	TitleEnglish string `json:"titleEnglish"`
	Episodes     int    `json:"episodes"`
}

// Client provides access to the AniList GraphQL API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an AniList client.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

const searchQuery = `query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {
      id
      format
      episodes
      title { romaji english }
    }
  }
}`

// SearchAnime looks up the catalogue entry for a cleaned series name.
// Returns nil when nothing suitable matches; TV entries are preferred over
// movies and specials.
func (c *Client) SearchAnime(ctx context.Context, name string) (*SearchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("search name must not be empty")
	}
	var payload struct {
		Page struct {
			Media []mediaEntry `json:"media"`
		} `json:"Page"`
	}
	if err := c.post(ctx, searchQuery, map[string]any{"search": name}, &payload); err != nil {
		return nil, err
	}
	candidates := payload.Page.Media
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, entry := range candidates {
		if isTVFormat(entry.Format) {
			result := entry.toSearchResult()
			return &result, nil
		}
	}
	result := candidates[0].toSearchResult()
	return &result, nil
}

const entryQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    format
    episodes
    title { romaji english }
    relations {
      edges {
        relationType
        node { id type format }
      }
    }
  }
}`

type mediaEntry struct {
	ID       int    `json:"id"`
	Format   string `json:"format"`
	Episodes int    `json:"episodes"`
	Title    struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Relations struct {
		Edges []struct {
			RelationType string `json:"relationType"`
			Node         struct {
				ID     int    `json:"id"`
				Type   string `json:"type"`
				Format string `json:"format"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"relations"`
}

func (e mediaEntry) toSearchResult() SearchResult {
	return SearchResult{
		ID:           e.ID,
		TitleRomaji:  strings.TrimSpace(e.Title.Romaji),
		TitleEnglish: strings.TrimSpace(e.Title.English),
		Format:       e.Format,
		Episodes:     e.Episodes,
	}
}

func (e mediaEntry) relatedID(relationType string) (int, bool) {
	for _, edge := range e.Relations.Edges {
		if edge.RelationType != relationType {
			continue
		}
		if edge.Node.Type != "ANIME" || !isTVFormat(edge.Node.Format) {
			continue
		}
		return edge.Node.ID, true
	}
	return 0, false
}

func isTVFormat(format string) bool {
	return format == "TV" || format == "TV_SHORT"
}

// DiscoverAllSeasons walks the relation chain from any entry of a series:
// prequels back to the root, then sequels forward. Only TV entries join the
// chain; a visited set terminates relation cycles.
func (c *Client) DiscoverAllSeasons(ctx context.Context, firstID int) ([]MinimalEntry, error) {
	if firstID <= 0 {
		return nil, errors.New("anime id must be positive")
	}
	visited := map[int]bool{}

	rootID := firstID
	for {
		visited[rootID] = true
		entry, err := c.fetchEntry(ctx, rootID)
		if err != nil {
			return nil, err
		}
		prequelID, ok := entry.relatedID("PREQUEL")
		if !ok || visited[prequelID] {
			break
		}
		rootID = prequelID
	}

	var seasons []MinimalEntry
	visited = map[int]bool{}
	currentID := rootID
	for {
		if visited[currentID] {
			break
		}
		visited[currentID] = true
		entry, err := c.fetchEntry(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if isTVFormat(entry.Format) {
			seasons = append(seasons, MinimalEntry{
				ID:           entry.ID,
				TitleRomaji:  strings.TrimSpace(entry.Title.Romaji),
				TitleEnglish: strings.TrimSpace(entry.Title.English),
				Episodes:     entry.Episodes,
			})
		}
		sequelID, ok := entry.relatedID("SEQUEL")
		if !ok {
			break
		}
		currentID = sequelID
	}
	return seasons, nil
}

const episodesQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    episodes
    streamingEpisodes { title }
  }
}`

var episodeTitlePattern = regexp.MustCompile(`(?i)^Episode\s+(\d+)\s*[-–—:]\s*(.+)$`)

// FetchSeasonEpisodes returns the ordered episode list for one season.
// AniList carries titles only for streamed entries; missing numbers are
// filled with bare entries up to expectedCount so every slot is addressable.
func (c *Client) FetchSeasonEpisodes(ctx context.Context, id, expectedCount int) ([]media.EpisodeMetadata, error) {
	if id <= 0 {
		return nil, errors.New("anime id must be positive")
	}
	var payload struct {
		Media struct {
			Episodes          int `json:"episodes"`
			StreamingEpisodes []struct {
				Title string `json:"title"`
			} `json:"streamingEpisodes"`
		} `json:"Media"`
	}
	if err := c.post(ctx, episodesQuery, map[string]any{"id": id}, &payload); err != nil {
		return nil, err
	}

	count := expectedCount
	if count <= 0 {
		count = payload.Media.Episodes
	}

	byNumber := map[int]media.EpisodeMetadata{}
	for _, streamed := range payload.Media.StreamingEpisodes {
		m := episodeTitlePattern.FindStringSubmatch(strings.TrimSpace(streamed.Title))
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil || number < 1 {
			continue
		}
		if count > 0 && number > count {
			continue
		}
		if _, exists := byNumber[number]; !exists {
			byNumber[number] = media.EpisodeMetadata{Number: number, Title: strings.TrimSpace(m[2])}
		}
	}

	if count <= 0 {
		numbers := make([]int, 0, len(byNumber))
		for number := range byNumber {
			numbers = append(numbers, number)
		}
		sort.Ints(numbers)
		episodes := make([]media.EpisodeMetadata, 0, len(numbers))
		for _, number := range numbers {
			episodes = append(episodes, byNumber[number])
		}
		return episodes, nil
	}

	episodes := make([]media.EpisodeMetadata, 0, count)
	for number := 1; number <= count; number++ {
		if ep, ok := byNumber[number]; ok {
			episodes = append(episodes, ep)
		} else {
			episodes = append(episodes, media.EpisodeMetadata{Number: number})
		}
	}
	return episodes, nil
}

func (c *Client) fetchEntry(ctx context.Context, id int) (*mediaEntry, error) {
	var payload struct {
		Media mediaEntry `json:"Media"`
	}
	if err := c.post(ctx, entryQuery, map[string]any{"id": id}, &payload); err != nil {
		return nil, err
	}
	if payload.Media.ID == 0 {
		return nil, fmt.Errorf("anilist entry %d not found", id)
	}
	return &payload.Media, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any, out any) error {
	encoded, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anilist returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode anilist response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("anilist error: %s", strings.TrimSpace(envelope.Errors[0].Message))
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode anilist data: %w", err)
		}
	}
	return nil
}
