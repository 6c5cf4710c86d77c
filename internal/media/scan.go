package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WorkingDirPrefix marks directories reserved for pipeline artifacts.
// Enumerations that target original content must skip them.
const WorkingDirPrefix = "_"

// EnumerateFiles walks root recursively and returns every regular file,
// including files inside reserved working directories. Paths are returned
// sorted by relative path so callers see a stable order.
func EnumerateFiles(root string) ([]SourceFile, error) {
	return walkFiles(root, false, false)
}

// CollectVideoFiles walks folder recursively and returns the video files
// that belong to the original content: reserved "_" directories are skipped
// and non-video extensions ignored.
func CollectVideoFiles(folder string) ([]SourceFile, error) {
	return walkFiles(folder, true, true)
}

func walkFiles(root string, skipWorkingDirs, videoOnly bool) ([]SourceFile, error) {
	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if skipWorkingDirs && path != root && strings.HasPrefix(entry.Name(), WorkingDirPrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if videoOnly && !IsVideoFile(entry.Name()) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, SourceFile{
			Path:         path,
			RelativePath: rel,
			Name:         entry.Name(),
			SizeBytes:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files, nil
}

// ListSubdirectories returns the immediate non-reserved subdirectories of
// dir, sorted by name.
func ListSubdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), WorkingDirPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// TotalSize sums the byte sizes of the given files.
func TotalSize(files []SourceFile) int64 {
	var total int64
	for _, file := range files {
		total += file.SizeBytes
	}
	return total
}
