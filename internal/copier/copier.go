// Package copier holds the filesystem leaves of the parallel copy engine:
// single-file streamed copies with liveness beacons, destination moves,
// integrity verification, and staging-tree capture. The concurrency window
// lives in the workflow layer; everything here is one file at a time.
package copier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BeaconInterval is how often an in-flight copy reports liveness so
// multi-gigabyte transfers do not trip activity timeouts.
const BeaconInterval = 30 * time.Second

// Beacon receives the number of bytes copied so far. It may be nil.
type Beacon func(bytesCopied int64)

// CopyFile streams src to dst, creating parent directories on demand and
// overwriting any existing destination. The beacon fires at most once per
// BeaconInterval while the stream is moving.
func CopyFile(src, dst string, beacon Beacon) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer out.Close()

	writer := &beaconWriter{dst: out, beacon: beacon, last: time.Now()}
	if _, err := io.Copy(writer, in); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

type beaconWriter struct {
	dst     io.Writer
	beacon  Beacon
	written int64
	last    time.Time
}

func (w *beaconWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if w.beacon != nil && time.Since(w.last) >= BeaconInterval {
		w.last = time.Now()
		w.beacon(w.written)
	}
	return n, err
}

// MoveFile renames src to dst within one filesystem, creating parent
// directories on demand. Already-moved sources are treated as done when the
// destination exists, which keeps replays of the structuring stage cheap.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		if _, dstErr := os.Stat(dst); dstErr == nil {
			return nil
		}
		return fmt.Errorf("move source missing: %s", src)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	return nil
}
