// FILE: src/internal/discovery/backfill.go
package discovery

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Tail window read from the end of a plain file when backfilling. Long
// enough to hold maxLines of any realistic log line length.
const tailWindowBytes = 256 * 1024

// ErrArchiveTooLarge marks an archive skipped because a full decode
// would exceed the configured ceiling. Compressed streams cannot be
// seeked from the end, so reading the last lines of an archive is a
// full decode; the ceiling bounds that one-time cost.
var ErrArchiveTooLarge = fmt.Errorf("archive exceeds backfill size ceiling")

// Backfill returns the last maxLines lines of the file. Plain files
// are read from a bounded tail window; gzip archives are decoded in
// full through a line ring buffer, never persisting a decompressed
// copy to disk.
func (e *Engine) Backfill(path string, maxLines int, maxArchiveBytes int64) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	if isArchive(path) {
		return backfillArchive(path, maxLines, maxArchiveBytes)
	}
	return backfillPlain(path, maxLines)
}

func backfillPlain(path string, maxLines int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	start := info.Size() - tailWindowBytes
	partialWindow := start > 0
	if !partialWindow {
		start = 0
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}

	lines, err := lastLines(f, maxLines, partialWindow)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func backfillArchive(path string, maxLines int, maxArchiveBytes int64) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if maxArchiveBytes > 0 && info.Size() > maxArchiveBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrArchiveTooLarge, path, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("corrupt archive %s: %w", path, err)
	}
	defer gz.Close()

	lines, err := lastLines(gz, maxLines, false)
	if err != nil {
		return nil, fmt.Errorf("corrupt archive %s: %w", path, err)
	}
	return lines, nil
}

// lastLines scans the reader keeping only the trailing maxLines
// non-empty lines. When skipFirst is set the first (likely partial)
// line of the window is discarded.
func lastLines(r io.Reader, maxLines int, skipFirst bool) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ring := make([]string, 0, maxLines)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if skipFirst {
				continue
			}
		}
		if line == "" {
			continue
		}
		if len(ring) == maxLines {
			copy(ring, ring[1:])
			ring = ring[:maxLines-1]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
