// Package logbuf keeps a bounded in-memory tail of the daemon's logs so
// the admin API can serve recent history without touching disk.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a single log entry captured from slog.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer is a thread-safe ring of the most recent log entries.
type Buffer struct {
	mu   sync.Mutex
	ring []Entry
	next int
	full bool
}

// New creates a buffer that retains up to size entries.
func New(size int) *Buffer {
	return &Buffer{ring: make([]Entry, size)}
}

// Write appends an entry, evicting the oldest once the buffer is full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// Query returns entries matching the filters, oldest first. A zero since
// matches everything; limit <= 0 returns all matches.
func (b *Buffer) Query(since time.Time, minLevel slog.Level, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Entry
	b.walk(func(e Entry) {
		if !since.IsZero() && e.Time.Before(since) {
			return
		}
		if levelOf(e) < minLevel {
			return
		}
		result = append(result, e)
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// QueryCall returns entries whose "call" attribute matches callID,
// oldest first.
func (b *Buffer) QueryCall(callID string, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Entry
	b.walk(func(e Entry) {
		if e.Attrs["call"] == callID {
			result = append(result, e)
		}
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// walk visits buffered entries oldest first. Callers hold the lock.
func (b *Buffer) walk(fn func(Entry)) {
	start, n := 0, b.next
	if b.full {
		start, n = b.next, len(b.ring)
	}
	for i := range n {
		fn(b.ring[(start+i)%len(b.ring)])
	}
}

func levelOf(e Entry) slog.Level {
	switch e.Level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
