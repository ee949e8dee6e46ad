package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// CurrentFileName is the stable name the daemon points at its active log.
const CurrentFileName = "comicdl.log"

const (
	pollInterval  = 250 * time.Millisecond
	maxLineLength = 1024 * 1024
)

// CurrentPath returns the location of the active daemon log within logDir.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentFileName)
}

// TailOptions selects what Tail reads. A negative Offset means "the last
// Lines lines"; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Lines  int
	Follow bool
	Wait   time.Duration
}

// Page is a batch of lines plus the offset to resume from.
type Page struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields an empty page. With
// Follow set, an empty read waits up to Wait for new lines.
func Tail(ctx context.Context, path string, opts TailOptions) (Page, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Page{}, nil
	}
	if err != nil {
		return Page{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Page{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	wait := max(opts.Wait, 0)

	var page Page
	if opts.Offset < 0 {
		page, err = lastLines(path, opts.Lines)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated or truncated underneath us; start from the end.
			offset = info.Size()
		}
		page, err = readFrom(path, offset)
	}
	if err != nil {
		return page, err
	}
	if opts.Follow && wait > 0 && len(page.Lines) == 0 {
		return waitFor(ctx, path, page.Offset, wait)
	}
	return page, nil
}

func lastLines(path string, n int) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Page{}, fmt.Errorf("seek log file: %w", err)
		}
		return Page{Offset: end}, nil
	}

	window := make([]string, 0, n)
	var consumed int64
	reader := bufio.NewScanner(file)
	reader.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	reader.Split(countingLines(&consumed))
	for reader.Scan() {
		if len(window) == n {
			copy(window, window[1:])
			window = window[:n-1]
		}
		window = append(window, reader.Text())
	}
	if err := reader.Err(); err != nil {
		return Page{}, fmt.Errorf("read log file: %w", err)
	}
	return Page{Lines: window, Offset: consumed}, nil
}

func readFrom(path string, offset int64) (Page, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Page{}, nil
	}
	if err != nil {
		return Page{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	consumed := offset
	var lines []string
	reader := bufio.NewScanner(file)
	reader.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	reader.Split(countingLines(&consumed))
	for reader.Scan() {
		lines = append(lines, reader.Text())
	}
	if err := reader.Err(); err != nil {
		return Page{Offset: offset}, fmt.Errorf("read log file: %w", err)
	}
	return Page{Lines: lines, Offset: consumed}, nil
}

// countingLines splits on newlines and only advances *consumed past complete
// lines, so a partially written trailing line is read again on the next poll.
func countingLines(consumed *int64) bufio.SplitFunc {
	return func(data []byte, _ bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, false)
		if err == nil && token != nil {
			*consumed += int64(advance)
		}
		return advance, token, err
	}
}

func waitFor(ctx context.Context, path string, offset int64, wait time.Duration) (Page, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		page, err := readFrom(path, offset)
		if err != nil || len(page.Lines) > 0 {
			return page, err
		}
		if time.Now().After(deadline) {
			return Page{Offset: offset}, nil
		}
		select {
		case <-ctx.Done():
			return Page{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
	}
}
