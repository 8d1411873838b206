package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultRingCapacity = 500

type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func (b *ringBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

func (b *ringBuffer) tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := b.next
	if b.full {
		size = len(b.lines)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]string, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.lines[(start+i)%len(b.lines)])
	}
	return out
}

// RingHandler retains the most recent formatted log lines in memory so the
// daemon can serve log tails over its control API without re-reading files.
type RingHandler struct {
	buf    *ringBuffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewRingHandler creates a ring handler that keeps up to capacity lines at or
// above the given level. A non-positive capacity falls back to the default.
func NewRingHandler(capacity int, level slog.Level) *RingHandler {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &RingHandler{
		buf:   &ringBuffer{lines: make([]string, capacity)},
		level: level,
	}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *RingHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	var component string
	var patientID string
	var caseIndex string
	var caseTotal string
	filtered := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		switch kv.key {
		case FieldComponent:
			if component == "" {
				component = attrString(kv.value)
			}
			continue
		case FieldPatientID:
			if patientID == "" {
				patientID = attrString(kv.value)
			}
			continue
		case FieldCaseIndex:
			if caseIndex == "" {
				caseIndex = attrString(kv.value)
			}
			continue
		case FieldCaseTotal:
			if caseTotal == "" {
				caseTotal = attrString(kv.value)
			}
			continue
		}
		filtered = append(filtered, kv)
	}
	filtered = dedupeKVsByKey(filtered)

	message := strings.TrimSpace(record.Message)

	var buf bytes.Buffer
	writeLogHeader(&buf, timestamp, record.Level, component, composeSubject(patientID, caseIndex, caseTotal), message, false, nil)
	for _, kv := range filtered {
		if kv.key == "" {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(kv.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(kv.value))
	}

	h.buf.append(buf.String())
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *RingHandler) clone() *RingHandler {
	clone := &RingHandler{buf: h.buf, level: h.level}
	if len(h.attrs) > 0 {
		clone.attrs = make([]slog.Attr, len(h.attrs))
		copy(clone.attrs, h.attrs)
	}
	if len(h.groups) > 0 {
		clone.groups = make([]string, len(h.groups))
		copy(clone.groups, h.groups)
	}
	return clone
}

// Tail returns up to n of the most recent lines, oldest first. A non-positive
// n returns everything retained.
func (h *RingHandler) Tail(n int) []string {
	return h.buf.tail(n)
}
