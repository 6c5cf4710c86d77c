package copier

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// VerificationReport describes an integrity check of a copied tree.
type VerificationReport struct {
	Verified bool     `json:"verified"`
	Missing  []string `json:"missing"`
}

// VerifyTree walks sourceRoot and requires, for every file, an output file
// at the same relative path with an identical byte length. This catches
// truncated or skipped copies; it is not a cryptographic check.
func VerifyTree(sourceRoot, outputRoot string) (VerificationReport, error) {
	var missing []string
	err := filepath.WalkDir(sourceRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return err
		}
		srcInfo, err := entry.Info()
		if err != nil {
			return err
		}
		dstInfo, err := os.Stat(filepath.Join(outputRoot, rel))
		if err != nil || dstInfo.Size() != srcInfo.Size() {
			missing = append(missing, rel)
		}
		return nil
	})
	if err != nil {
		return VerificationReport{}, err
	}
	sort.Strings(missing)
	return VerificationReport{Verified: len(missing) == 0, Missing: missing}, nil
}
