// Package detect implements the episode cluster detector: a file-size
// histogram heuristic that splits a disc folder's video files into episodes
// and extras. Episode files of one series cluster tightly by bitrate and
// duration, while menus, trailers, and bonus features land in other size
// bands.
package detect

import (
	"sort"

	"sera/internal/media"
)

const (
	// minBinWidth keeps the histogram coarse enough that normal per-episode
	// size variation stays inside one bin.
	minBinWidth = 50 * 1024 * 1024 // 50 MiB

	binCount = 20

	// Episodes are accepted within ±20% of the selected cluster's median.
	windowLow  = 0.8
	windowHigh = 1.2

	// Confidence banding: high needs a dominant cluster of at least six
	// files, which prevents false-high results on very short series.
	highMinEpisodes  = 6
	highMinFraction  = 0.6
	mediumMinEpisode = 3
)

// Detect walks folder recursively (reserved "_" directories skipped),
// collects video files, and partitions them by size cluster.
func Detect(folder string) (media.DetectionResult, error) {
	files, err := media.CollectVideoFiles(folder)
	if err != nil {
		return media.DetectionResult{}, err
	}
	return Classify(files), nil
}

// Classify partitions the given video files into episodes and non-episodes.
// The returned sets are disjoint and together cover the input.
func Classify(files []media.SourceFile) media.DetectionResult {
	switch n := len(files); {
	case n == 0:
		return media.DetectionResult{Confidence: media.ConfidenceLow}
	case n == 1:
		return media.DetectionResult{
			Episodes:      append([]media.SourceFile(nil), files...),
			Confidence:    media.ConfidenceMedium,
			ClusterMedian: files[0].SizeBytes,
			ClusterMin:    files[0].SizeBytes,
			ClusterMax:    files[0].SizeBytes,
		}
	case n == 2:
		sorted := sortedBySize(files)
		return media.DetectionResult{
			Episodes:      sorted,
			Confidence:    media.ConfidenceLow,
			ClusterMedian: medianSize(sorted),
			ClusterMin:    sorted[0].SizeBytes,
			ClusterMax:    sorted[1].SizeBytes,
		}
	}

	sorted := sortedBySize(files)
	minSize := sorted[0].SizeBytes
	maxSize := sorted[len(sorted)-1].SizeBytes

	width := (maxSize - minSize) / binCount
	if width < minBinWidth {
		width = minBinWidth
	}

	bins := make(map[int][]media.SourceFile)
	for _, file := range sorted {
		idx := int((file.SizeBytes - minSize) / width)
		bins[idx] = append(bins[idx], file)
	}

	// Most populated bin wins; ties break toward the smaller bin index so
	// two equal clusters resolve to the smaller-sized one.
	bestIdx, bestCount := -1, 0
	for idx, members := range bins {
		if len(members) > bestCount || (len(members) == bestCount && idx < bestIdx) {
			bestIdx, bestCount = idx, len(members)
		}
	}

	median := medianSize(bins[bestIdx])
	low := int64(float64(median) * windowLow)
	high := int64(float64(median) * windowHigh)

	var episodes, nonEpisodes []media.SourceFile
	for _, file := range sorted {
		if file.SizeBytes >= low && file.SizeBytes <= high {
			episodes = append(episodes, file)
		} else {
			nonEpisodes = append(nonEpisodes, file)
		}
	}

	return media.DetectionResult{
		Episodes:      episodes,
		NonEpisodes:   nonEpisodes,
		Confidence:    grade(len(episodes), len(files)),
		ClusterMedian: median,
		ClusterMin:    low,
		ClusterMax:    high,
	}
}

func grade(episodeCount, total int) media.DetectionConfidence {
	switch {
	case episodeCount >= highMinEpisodes && float64(episodeCount)/float64(total) > highMinFraction:
		return media.ConfidenceHigh
	case episodeCount >= mediumMinEpisode:
		return media.ConfidenceMedium
	default:
		return media.ConfidenceLow
	}
}

func sortedBySize(files []media.SourceFile) []media.SourceFile {
	sorted := append([]media.SourceFile(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SizeBytes < sorted[j].SizeBytes })
	return sorted
}

// medianSize expects files sorted by size ascending; for even counts it
// averages the two middle values.
func medianSize(files []media.SourceFile) int64 {
	n := len(files)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return files[n/2].SizeBytes
	}
	return (files[n/2-1].SizeBytes + files[n/2].SizeBytes) / 2
}
