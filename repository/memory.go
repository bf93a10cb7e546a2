package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/krisalay/query-cache/invalidation"
)

// Record is a row of a MemoryOrigin table.
type Record map[string]any

/*
MemoryOrigin is an in-process Origin for demos and tests.

  - getAll returns every record, ordered by id
  - search takes a string and returns records with a string field containing it
  - filter takes a map[string]any and returns records whose fields equal it
  - getById returns one record or ErrNotFound

Returned records are copies; callers may keep them.
*/
type MemoryOrigin struct {
	mu     sync.RWMutex
	tables map[string]map[string]Record

	reads  atomic.Int64
	writes atomic.Int64
}

// NewMemoryOrigin creates an empty origin.
func NewMemoryOrigin() *MemoryOrigin {
	return &MemoryOrigin{tables: make(map[string]map[string]Record)}
}

// Reads returns how many reads reached the origin.
func (m *MemoryOrigin) Reads() int64 { return m.reads.Load() }

// Writes returns how many writes the origin applied.
func (m *MemoryOrigin) Writes() int64 { return m.writes.Load() }

// Read implements Origin.
func (m *MemoryOrigin) Read(ctx context.Context, r Read) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[r.Table]

	switch r.Op {
	case invalidation.OpGetByID:
		rec, ok := rows[r.ID]
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "%s/%s", r.Table, r.ID)
		}
		return maps.Clone(rec), nil
	case invalidation.OpGetAll:
		return collect(rows, func(Record) bool { return true }), nil
	case invalidation.OpSearch:
		term, _ := r.Query.(string)
		return collect(rows, func(rec Record) bool { return containsText(rec, term) }), nil
	case invalidation.OpFilter:
		where, _ := r.Query.(map[string]any)
		return collect(rows, func(rec Record) bool { return matchesAll(rec, where) }), nil
	default:
		return nil, errors.Errorf("repository: unknown read op %q", r.Op)
	}
}

// Write implements Origin. Payloads must be Record or map[string]any.
func (m *MemoryOrigin) Write(ctx context.Context, w Write) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[w.Table]
	if !ok {
		rows = make(map[string]Record)
		m.tables[w.Table] = rows
	}

	switch w.Op {
	case invalidation.Create:
		id := w.ID
		if id == "" {
			id = uuid.NewString()
		}
		rec, err := toRecord(w.Payload)
		if err != nil {
			return "", err
		}
		rec["id"] = id
		rows[id] = rec
		m.writes.Add(1)
		return id, nil
	case invalidation.Update:
		if _, ok := rows[w.ID]; !ok {
			return "", errors.Wrapf(ErrNotFound, "%s/%s", w.Table, w.ID)
		}
		rec, err := toRecord(w.Payload)
		if err != nil {
			return "", err
		}
		rec["id"] = w.ID
		rows[w.ID] = rec
		m.writes.Add(1)
		return w.ID, nil
	case invalidation.Delete:
		if _, ok := rows[w.ID]; !ok {
			return "", errors.Wrapf(ErrNotFound, "%s/%s", w.Table, w.ID)
		}
		delete(rows, w.ID)
		m.writes.Add(1)
		return w.ID, nil
	default:
		return "", errors.Errorf("repository: unknown mutation %q", w.Op)
	}
}

func toRecord(payload any) (Record, error) {
	switch p := payload.(type) {
	case Record:
		return maps.Clone(p), nil
	case map[string]any:
		return Record(maps.Clone(p)), nil
	case nil:
		return Record{}, nil
	default:
		return nil, errors.Errorf("repository: unsupported payload %T", payload)
	}
}

func collect(rows map[string]Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(rows))
	for _, id := range slices.Sorted(maps.Keys(rows)) {
		if rec := rows[id]; keep(rec) {
			out = append(out, maps.Clone(rec))
		}
	}
	return out
}

func containsText(rec Record, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, v := range rec {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func matchesAll(rec Record, where map[string]any) bool {
	for k, want := range where {
		got, ok := rec[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
