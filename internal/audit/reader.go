package audit

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

// DefaultTailLines is the default number of lines read by Tail.
const DefaultTailLines = 100

// Filter selects audit lines. A nil Filter matches everything.
type Filter func(line string) bool

// TypeFilter matches lines of any of the given event types.
func TypeFilter(types ...EventType) Filter {
	if len(types) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, t := range types {
			if strings.Contains(line, " EXEC "+string(t)+" ") {
				return true
			}
		}
		return false
	}
}

// ParseEventType converts a case-insensitive name to an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case EventComplete, EventFault, EventTimeout, EventReject:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q (valid: COMPLETE, FAULT, TIMEOUT, REJECT)", s)
}

// Tail returns the last n matching lines of the audit file at path.
// If n <= 0, DefaultTailLines is used.
func Tail(path string, n int, filter Filter) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	ring := make([]string, n)
	idx, count := 0, 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if filter != nil && !filter(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % n
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	if count < n {
		return ring[:count], nil
	}

	out := make([]string, n)
	for i := range n {
		out[i] = ring[(idx+i)%n]
	}
	return out, nil
}

// Follow writes matching lines appended to path until ctx ends, polling every
// interval. When the file is rotated away the rest of the old file is read
// before the new file is read from its start.
func Follow(ctx context.Context, path string, out io.Writer, interval time.Duration, filter Filter) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return fmt.Errorf("seek to end: %w", err)
	}

	f := &follower{path: path, file: file, reader: bufio.NewReader(file), out: out, filter: filter}
	defer func() { f.file.Close() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := f.drain(); err != nil {
			return err
		}
		if err := f.reopen(); err != nil {
			return err
		}
	}
}

type follower struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	partial []byte
	out     io.Writer
	filter  Filter
}

// drain writes every complete line up to EOF. An unterminated tail is kept
// until the rest of the line arrives.
func (f *follower) drain() error {
	for {
		chunk, err := f.reader.ReadBytes('\n')
		f.partial = append(f.partial, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read audit log: %w", err)
		}
		if err := f.emit(); err != nil {
			return err
		}
	}
}

func (f *follower) emit() error {
	line := strings.TrimSuffix(string(f.partial), "\n")
	f.partial = f.partial[:0]
	if f.filter != nil && !f.filter(line) {
		return nil
	}
	if _, err := fmt.Fprintln(f.out, line); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// reopen switches to the file now at path if the current one was rotated
// away. Lines written to the old file since the last drain are emitted first.
func (f *follower) reopen() error {
	if !rotated(f.file, f.path) {
		return nil
	}
	next, err := os.Open(f.path)
	if err != nil {
		return nil
	}

	if err := f.drain(); err != nil {
		next.Close()
		return err
	}
	if len(f.partial) > 0 {
		if err := f.emit(); err != nil {
			next.Close()
			return err
		}
	}

	f.file.Close()
	f.file = next
	f.reader.Reset(next)
	return nil
}

// rotated reports whether path now names a different file than f.
func rotated(f *os.File, path string) bool {
	cur, err := f.Stat()
	if err != nil {
		return false
	}
	next, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !os.SameFile(cur, next)
}
