// Package audit defines the append-only audit trail of administrative actions.
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is a short tag describing what happened.
type Action string

// Audited actions.
const (
	ActionNewStudent    Action = "NEW_STUDENT"
	ActionUpdateStudent Action = "UPDATE_STUDENT"
	ActionDeleteStudent Action = "DELETE_STUDENT"
	ActionSystemReset   Action = "SYSTEM_RESET"
	ActionLoginFailed   Action = "LOGIN_FAILED"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Entry is one immutable audit record.
type Entry struct {
	ID          string `json:"id"`
	Action      Action `json:"action"`
	Details     string `json:"details"`
	TimestampMs int64  `json:"timestamp"`
}

// Time returns the entry timestamp.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// Sink is append-only keyed storage for audit entries.
type Sink interface {
	// Append stores one entry under its ID.
	Append(ctx context.Context, e Entry) error

	// ScanReverse returns up to limit entries in descending ID order.
	ScanReverse(ctx context.Context, limit int) ([]Entry, error)

	// Recreate drops every entry and provisions an empty sink.
	Recreate(ctx context.Context) error
}

// Recorder accepts audit entries without ever failing the caller.
type Recorder interface {
	Record(ctx context.Context, action Action, details string)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY IDS
// ══════════════════════════════════════════════════════════════════════════════

// idTimeWidth zero-pads the millisecond prefix so lexical order of IDs
// matches chronological order. idSeqWidth does the same for the counter that
// orders IDs issued within one millisecond.
const (
	idTimeWidth = 15
	idSeqWidth  = 6
	idSeqLimit  = 1_000_000
)

// IDGenerator produces entry IDs whose timestamp prefix never goes backwards,
// even if the wall clock does. IDs from one generator sort in issue order.
type IDGenerator struct {
	mu     sync.Mutex
	lastMs int64
	seq    int
	now    func() time.Time
}

// NewIDGenerator creates a generator reading time from now. A nil now uses
// time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh ID and the millisecond timestamp encoded in it.
func (g *IDGenerator) Next() (string, int64) {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	switch {
	case ms > g.lastMs:
		g.seq = 0
	case g.seq+1 >= idSeqLimit:
		// counter exhausted: borrow the next millisecond
		ms = g.lastMs + 1
		g.seq = 0
	default:
		ms = g.lastMs
		g.seq++
	}
	g.lastMs = ms
	seq := g.seq
	g.mu.Unlock()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%0*d-%0*d-%s", idTimeWidth, ms, idSeqWidth, seq, suffix), ms
}

// NewEntry builds an entry with a fresh ID.
func (g *IDGenerator) NewEntry(action Action, details string) Entry {
	id, ms := g.Next()
	return Entry{
		ID:          id,
		Action:      action,
		Details:     details,
		TimestampMs: ms,
	}
}
