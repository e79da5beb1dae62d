package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
)

// AuditSink implements audit.Sink in memory.
type AuditSink struct {
	mu      sync.RWMutex
	entries map[string]audit.Entry
}

// NewAuditSink creates an empty sink.
func NewAuditSink() *AuditSink {
	return &AuditSink{entries: make(map[string]audit.Entry)}
}

var _ audit.Sink = (*AuditSink)(nil)

// Append stores one entry; an existing id is kept.
func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		s.entries[e.ID] = e
	}
	return nil
}

// ScanReverse returns up to limit entries in descending id order.
func (s *AuditSink) ScanReverse(ctx context.Context, limit int) ([]audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recreate drops every entry.
func (s *AuditSink) Recreate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = make(map[string]audit.Entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (s *AuditSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
