// Package ledger enforces at-most-once attendance marking per (date,
// identity) pair on top of a key-value store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/kralovic/faceattend/internal/kvstore"
)

const (
	// DateFormat keys attendance records by calendar day.
	DateFormat = "2006-01-02"
	// TimestampFormat is the stored mark timestamp.
	TimestampFormat = "2006-01-02 15:04:05"

	mutexShards = 64
)

// MarkResult reports the outcome of a mark attempt.
type MarkResult struct {
	Marked    bool   // true when this attempt created the record
	Timestamp string // the stored timestamp, the first attempt's on repeats

	// CounterStale is set when the attendance record was committed but the
	// follow-up counter update failed. The mark itself is valid; only
	// Total/LastSeen lag until the identity is marked again.
	CounterStale bool
}

// StudentRecord carries the running per-identity counters.
type StudentRecord struct {
	Total    int    `json:"total"`
	LastSeen string `json:"last_seen"`
}

// Ledger tracks daily attendance. The conditional write on the attendance
// key decides who marked first; a per-identity mutex serializes the counter
// update that follows so two racing requests never double-increment.
type Ledger struct {
	store kvstore.Store
	locks [mutexShards]sync.Mutex
	now   func() time.Time
}

// New creates a ledger on the given store.
func New(store kvstore.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func attendanceKey(date, identity string) string {
	return fmt.Sprintf("attendance/%s/%s", date, identity)
}

func studentKey(identity string) string {
	return fmt.Sprintf("students/%s", identity)
}

func (l *Ledger) lock(identity string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return &l.locks[h.Sum32()%mutexShards]
}

// Mark records attendance for identity on the given date. The first call of
// the day creates the record and bumps the identity's counters; every later
// call is a no-op that returns the stored timestamp with Marked=false. Two
// concurrent calls for the same identity resolve in the store: exactly one
// sees Marked=true.
func (l *Ledger) Mark(ctx context.Context, date, identity string) (MarkResult, error) {
	mu := l.lock(identity)
	mu.Lock()
	defer mu.Unlock()

	key := attendanceKey(date, identity)
	ts := l.now().Format(TimestampFormat)

	created, err := l.store.SetIfAbsent(ctx, key, ts)
	if err != nil {
		return MarkResult{}, fmt.Errorf("mark attendance: %w", err)
	}
	if !created {
		stored, err := l.store.Get(ctx, key)
		if err != nil {
			return MarkResult{}, fmt.Errorf("read existing mark: %w", err)
		}
		return MarkResult{Marked: false, Timestamp: stored}, nil
	}

	if err := l.bumpStudent(ctx, identity, ts); err != nil {
		// The attendance record is already committed; returning an error
		// here would make the caller report a failed mark and retry into
		// the already-marked path, losing the counter bump for good.
		// Report the mark as it stands and flag the stale counters.
		return MarkResult{Marked: true, Timestamp: ts, CounterStale: true}, nil
	}
	return MarkResult{Marked: true, Timestamp: ts}, nil
}

// bumpStudent increments the running total and updates last-seen. Caller
// holds the identity lock.
func (l *Ledger) bumpStudent(ctx context.Context, identity, ts string) error {
	var rec StudentRecord
	raw, err := l.store.Get(ctx, studentKey(identity))
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		// first mark ever
	case err != nil:
		return fmt.Errorf("read student record: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode student record: %w", err)
		}
	}

	rec.Total++
	rec.LastSeen = ts

	out, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode student record: %w", err)
	}
	if err := l.store.Set(ctx, studentKey(identity), string(out)); err != nil {
		return fmt.Errorf("write student record: %w", err)
	}
	return nil
}

// Marked reports whether identity already has a record for the date.
func (l *Ledger) Marked(ctx context.Context, date, identity string) (bool, error) {
	_, err := l.store.Get(ctx, attendanceKey(date, identity))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check mark: %w", err)
	}
	return true, nil
}

// Day returns all marks for a date as identity -> timestamp.
func (l *Ledger) Day(ctx context.Context, date string) (map[string]string, error) {
	prefix := fmt.Sprintf("attendance/%s/", date)
	raw, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k[len(prefix):]] = v
	}
	return out, nil
}

// Student returns the running counters for an identity. A never-marked
// identity yields a zero record, not an error.
func (l *Ledger) Student(ctx context.Context, identity string) (StudentRecord, error) {
	raw, err := l.store.Get(ctx, studentKey(identity))
	if errors.Is(err, kvstore.ErrNotFound) {
		return StudentRecord{}, nil
	}
	if err != nil {
		return StudentRecord{}, fmt.Errorf("read student record: %w", err)
	}
	var rec StudentRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return StudentRecord{}, fmt.Errorf("decode student record: %w", err)
	}
	return rec, nil
}
