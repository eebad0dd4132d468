package audit

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvents(t *testing.T, path string, events ...Event) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	l := NewLogger(f)
	for i := range events {
		if events[i].Timestamp.IsZero() {
			events[i].Timestamp = testTime
		}
		require.NoError(t, l.Log(&events[i]))
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	var events []Event
	for i := range 10 {
		typ := EventComplete
		if i%3 == 0 {
			typ = EventTimeout
		}
		events = append(events, Event{Type: typ, Cmd: fmt.Sprintf("cmd-%d", i)})
	}
	writeEvents(t, path, events...)

	t.Run("last n lines", func(t *testing.T) {
		lines, err := Tail(path, 3, nil)
		require.NoError(t, err)
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], `cmd="cmd-7"`)
		assert.Contains(t, lines[2], `cmd="cmd-9"`)
	})

	t.Run("fewer lines than requested", func(t *testing.T) {
		lines, err := Tail(path, 50, nil)
		require.NoError(t, err)
		assert.Len(t, lines, 10)
	})

	t.Run("filtered by type", func(t *testing.T) {
		lines, err := Tail(path, 0, TypeFilter(EventTimeout))
		require.NoError(t, err)
		require.Len(t, lines, 4)
		for _, l := range lines {
			assert.Contains(t, l, " EXEC TIMEOUT ")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Tail(filepath.Join(t.TempDir(), "nope.log"), 5, nil)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseEventType(t *testing.T) {
	typ, err := ParseEventType("timeout")
	require.NoError(t, err)
	assert.Equal(t, EventTimeout, typ)

	_, err = ParseEventType("crash")
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollow(t *testing.T) {
	t.Run("streams appended lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.log")
		writeEvents(t, path, Event{Type: EventComplete, Cmd: "old"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var out syncBuffer
		done := make(chan error, 1)
		go func() { done <- Follow(ctx, path, &out, 10*time.Millisecond, TypeFilter(EventFault)) }()

		// Give Follow time to seek past the existing content.
		time.Sleep(50 * time.Millisecond)
		writeEvents(t, path,
			Event{Type: EventComplete, Cmd: "skipped"},
			Event{Type: EventFault, Cmd: "new", Reason: "boom"},
		)

		assert.Eventually(t, func() bool {
			return strings.Contains(out.String(), `cmd="new"`)
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
		assert.NotContains(t, out.String(), "old")
		assert.NotContains(t, out.String(), "skipped")
	})

	t.Run("reopens after rotation", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "audit.log")
		writeEvents(t, path, Event{Type: EventComplete, Cmd: "before"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var out syncBuffer
		go func() { _ = Follow(ctx, path, &out, 10*time.Millisecond, nil) }()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, os.Rename(path, filepath.Join(dir, "audit-1.log")))
		writeEvents(t, path, Event{Type: EventComplete, Cmd: "after"})

		assert.Eventually(t, func() bool {
			return strings.Contains(out.String(), `cmd="after"`)
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestFollower_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	writeEvents(t, path, Event{Type: EventComplete, Cmd: "seen"})

	file, err := os.Open(path)
	require.NoError(t, err)

	var out bytes.Buffer
	f := &follower{path: path, file: file, reader: bufio.NewReader(file), out: &out}
	defer func() { f.file.Close() }()

	require.NoError(t, f.drain())
	require.Contains(t, out.String(), `cmd="seen"`)

	// Written after the last drain, then rotated away before the next poll.
	writeEvents(t, path, Event{Type: EventComplete, Cmd: "late"})
	rotatedPath := filepath.Join(dir, "audit-1.log")
	require.NoError(t, os.Rename(path, rotatedPath))
	old, err := os.OpenFile(rotatedPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = old.WriteString("unterminated")
	require.NoError(t, err)
	require.NoError(t, old.Close())
	writeEvents(t, path, Event{Type: EventComplete, Cmd: "after"})

	require.NoError(t, f.reopen())
	require.NoError(t, f.drain())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], `cmd="late"`)
	assert.Equal(t, "unterminated", lines[2])
	assert.Contains(t, lines[3], `cmd="after"`)
}

func TestFollower_ReopenWithoutRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	writeEvents(t, path, Event{Type: EventComplete, Cmd: "only"})

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out bytes.Buffer
	f := &follower{path: path, file: file, reader: bufio.NewReader(file), out: &out}

	require.NoError(t, f.reopen())
	assert.Same(t, file, f.file)
	assert.Empty(t, out.String())
}
