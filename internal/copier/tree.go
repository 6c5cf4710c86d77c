package copier

import (
	"os"
	"path/filepath"
	"sort"

	"sera/internal/media"
)

// CaptureTree builds the recursive directory snapshot presented to the
// operator before finalize. Directories sort before files, alphabetical
// within each group.
func CaptureTree(root string) (*media.TreeNode, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	node := &media.TreeNode{Name: filepath.Base(root), Type: "directory", RelativePath: "."}
	if !info.IsDir() {
		node.Type = "file"
		node.Size = info.Size()
		return node, nil
	}
	if err := fillChildren(node, root, ""); err != nil {
		return nil, err
	}
	return node, nil
}

func fillChildren(parent *media.TreeNode, dir, relBase string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		rel := filepath.Join(relBase, entry.Name())
		child := &media.TreeNode{Name: entry.Name(), RelativePath: rel}
		if entry.IsDir() {
			child.Type = "directory"
			if err := fillChildren(child, filepath.Join(dir, entry.Name()), rel); err != nil {
				return err
			}
		} else {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			child.Type = "file"
			child.Size = info.Size()
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}
