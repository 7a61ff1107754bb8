package pipeline

import (
	"strings"
	"sync"
)

// DefaultErrorTailSize is the number of characters of stderr kept for the
// failure message.
const DefaultErrorTailSize = 3700

// ring is a fixed-size circular buffer. Push overwrites the oldest entry
// when full.
type ring[T any] struct {
	buffer []T
	head   int // next write position
	count  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{buffer: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	r.buffer[r.head] = item
	r.head = (r.head + 1) % len(r.buffer)
	if r.count < len(r.buffer) {
		r.count++
	}
}

// each visits entries oldest first.
func (r *ring[T]) each(fn func(T)) {
	start := 0
	if r.count == len(r.buffer) {
		start = r.head
	}
	for i := range r.count {
		fn(r.buffer[(start+i)%len(r.buffer)])
	}
}

// ErrorTail keeps the most recent stderr characters, one newline after
// each appended line. Lines are stored as displayed: prefixed and
// redacted. Safe for concurrent use.
type ErrorTail struct {
	mu   sync.Mutex
	ring *ring[rune]
}

// NewErrorTail creates a tail holding at most size characters.
func NewErrorTail(size int) *ErrorTail {
	if size <= 0 {
		size = DefaultErrorTailSize
	}
	return &ErrorTail{ring: newRing[rune](size)}
}

// AppendLine adds line followed by a newline, evicting the oldest
// characters as needed.
func (t *ErrorTail) AppendLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range line {
		t.ring.push(r)
	}
	t.ring.push('\n')
}

// String returns the retained characters in order.
func (t *ErrorTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	b.Grow(t.ring.count)
	t.ring.each(func(r rune) { b.WriteRune(r) })
	return b.String()
}
