package copier

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileCreatesParentsAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "out", "Season 01", "dst.mkv")
	payload := bytes.Repeat([]byte("sera"), 1024)
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst, nil); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("destination content mismatch")
	}

	// Overwrite with shorter content; retries are by-path overwrite.
	if err := os.WriteFile(src, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst, nil); err != nil {
		t.Fatalf("CopyFile overwrite: %v", err)
	}
	got, _ = os.ReadFile(dst)
	if string(got) != "short" {
		t.Errorf("overwrite left %q", got)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst"), nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveFileIdempotentAfterReplay(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "_episodes", "Season 01", "ep.mkv")
	dst := filepath.Join(dir, "_structured", "Show", "Season 01", "ep.mkv")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	// Replaying the move after a crash: source gone, destination present.
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile replay: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("destination missing after replay: %v", err)
	}
}

func TestMoveFileMissingBothSides(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "a"), filepath.Join(dir, "b")); err == nil {
		t.Fatal("expected error when neither side exists")
	}
}

func TestVerifyTree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write := func(root, rel string, size int) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(src, "Season 01/a.mkv", 100)
	write(src, "Season 01/b.mkv", 200)
	write(src, "Extras/menu.mkv", 50)
	write(dst, "Season 01/a.mkv", 100)
	write(dst, "Season 01/b.mkv", 150) // truncated
	// Extras/menu.mkv absent.

	report, err := VerifyTree(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if report.Verified {
		t.Error("expected verification failure")
	}
	want := []string{filepath.Join("Extras", "menu.mkv"), filepath.Join("Season 01", "b.mkv")}
	if len(report.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", report.Missing, want)
	}
	for i := range want {
		if report.Missing[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, report.Missing[i], want[i])
		}
	}

	write(dst, "Season 01/b.mkv", 200)
	write(dst, "Extras/menu.mkv", 50)
	report, err = VerifyTree(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Verified || len(report.Missing) != 0 {
		t.Errorf("expected clean verification, got %+v", report)
	}
}

func TestCaptureTreeOrdering(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"Season 01/b.mkv", "Season 01/a.mkv", "Extras/menu.mkv"} {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "zz-notes.txt"), []byte("n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tree, err := CaptureTree(root)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Type != "directory" || len(tree.Children) != 3 {
		t.Fatalf("unexpected root: %+v", tree)
	}
	// Directories first (alphabetical), then files.
	wantNames := []string{"Extras", "Season 01", "zz-notes.txt"}
	for i, want := range wantNames {
		if tree.Children[i].Name != want {
			t.Errorf("child[%d] = %q, want %q", i, tree.Children[i].Name, want)
		}
	}
	season := tree.Children[1]
	if season.Children[0].Name != "a.mkv" || season.Children[1].Name != "b.mkv" {
		t.Errorf("season children out of order: %+v", season.Children)
	}
	if season.Children[0].Size != 1 {
		t.Errorf("file size = %d, want 1", season.Children[0].Size)
	}
}
