package logging

import (
	"slices"
	"sync"
	"time"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries. It is safe for concurrent use.
type RingBuffer struct {
	mu   sync.RWMutex
	ring []LogEntry
	next int // slot for the next write
	full bool
}

// NewRingBuffer creates a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{ring: make([]LogEntry, max(size, 1))}
}

// Write appends entry, dropping the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.ring[rb.next] = entry
	rb.next++
	if rb.next == len(rb.ring) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns all entries, oldest first, or nil when empty.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0, nil)
}

// Tail returns up to limit of the newest entries accepted by keep, oldest
// first. A limit of 0 means no limit and a nil keep accepts everything.
func (rb *RingBuffer) Tail(limit int, keep func(LogEntry) bool) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := rb.countLocked()
	var out []LogEntry
	// Walk newest to oldest so the limit keeps the most recent entries.
	for i := 1; i <= n; i++ {
		e := rb.ring[(rb.next-i+len(rb.ring))%len(rb.ring)]
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	slices.Reverse(out)
	return out
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.countLocked()
}

func (rb *RingBuffer) countLocked() int {
	if rb.full {
		return len(rb.ring)
	}
	return rb.next
}
