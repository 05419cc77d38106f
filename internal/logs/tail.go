package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Options selects which lines Tail returns.
type Options struct {
	// Limit keeps only the last Limit matching lines. Zero keeps all.
	Limit int
	// Match keeps lines containing the substring, for example "run_id=<id>".
	Match string
}

// Result holds the selected lines and the file offset after the last complete
// line read, for use with Follow.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads path and returns the selected lines. A missing file yields an
// empty result.
func Tail(path string, opts Options) (Result, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	var ring []string
	next := 0
	offset, err := scanLines(file, func(line string) {
		if opts.Match != "" && !strings.Contains(line, opts.Match) {
			return
		}
		if opts.Limit <= 0 || len(ring) < opts.Limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % opts.Limit
	})
	if err != nil {
		return Result{}, err
	}
	lines := append(append([]string(nil), ring[next:]...), ring[:next]...)
	return Result{Lines: lines, Offset: offset}, nil
}

// Follow polls path from offset and calls emit for each new matching line
// until ctx is done. A file that shrinks is reread from the start.
func Follow(ctx context.Context, path string, offset int64, match string, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		next, err := readFrom(path, offset, match, emit)
		if err != nil {
			return err
		}
		offset = next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, match string, emit func(string)) (int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return 0, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scanLines(file, func(line string) {
		if match == "" || strings.Contains(line, match) {
			emit(line)
		}
	})
	return offset + read, err
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines calls fn for every newline-terminated line and returns the bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			fn(strings.TrimRight(line, "\r\n"))
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
