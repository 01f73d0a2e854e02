// Package tail reads the last N lines of a growing file and streams
// incremental appends observed via filesystem modify events (spec §4.2).
package tail

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// avgLineBytes is the conservative per-line byte budget ReadLast seeks
// backward by before reading forward, per spec's "n × average_line_bytes,
// clamped to file size" design note.
const avgLineBytes = 256

// Tail reads from, and watches, a single regular file.
type Tail struct {
	path string
}

// New returns a Tail over the absolute path to an existing regular file.
func New(path string) *Tail {
	return &Tail{path: path}
}

// ReadLast returns the last n newline-delimited records, oldest-first. It
// returns fewer than n if the file has fewer lines, and an empty slice for
// n <= 0 or an empty file. Only the last n*avgLineBytes bytes are read, so
// when the last n lines are longer than that in total it returns fewer
// than n records and the first one may be a partial line.
func (t *Tail) ReadLast(n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	budget := int64(n) * avgLineBytes
	if budget > size {
		budget = size
	}
	start := size - budget
	if start < 0 {
		start = 0
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Watch blocks, observing modification events on the file, and streams
// each newly appended byte range to sink in order, until sink returns an
// error (treated as "closed"), the file is removed, or ctx is cancelled.
// An error from the event stream itself is returned as fatal.
func (t *Tail) Watch(ctx context.Context, sink io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(t.path); err != nil {
		return err
	}

	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	cursor := info.Size()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil
			}
			if ev.Op&fsnotify.Write == 0 {
				continue
			}

			newCursor, werr := drainAppend(f, cursor, sink)
			cursor = newCursor
			if werr != nil {
				if werr == errSinkClosed {
					return nil
				}
				return werr
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return werr
		}
	}
}

var errSinkClosed = io.ErrClosedPipe

// drainAppend seeks f to cursor, reads to EOF tolerating transient short
// reads, writes what it read to sink, and returns the advanced cursor.
func drainAppend(f *os.File, cursor int64, sink io.Writer) (int64, error) {
	if _, err := f.Seek(cursor, io.SeekStart); err != nil {
		return cursor, err
	}

	buf := make([]byte, 64*1024)
	total := cursor

	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				return total + int64(n), errSinkClosed
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}
