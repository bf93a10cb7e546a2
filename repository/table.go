package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/krisalay/query-cache/api"
	"github.com/krisalay/query-cache/invalidation"
	"github.com/krisalay/query-cache/keys"
)

// Table is the cached view of one origin table.
type Table struct {
	name   string
	cache  api.Cache
	origin Origin
	policy WritePolicy
	logger zerolog.Logger
}

// TableOption customises a Table.
type TableOption func(*Table)

// WithWritePolicy replaces the default write-through policy.
func WithWritePolicy(p WritePolicy) TableOption {
	return func(t *Table) { t.policy = p }
}

// WithTableLogger sets the logger; the default discards everything.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithTableLogger(l zerolog.Logger) TableOption {
	return func(t *Table) { t.logger = l }
}

// NewTable binds table name to a cache and an origin.
func NewTable(name string, c api.Cache, origin Origin, opts ...TableOption) *Table {
	t := &Table{
		name:   name,
		cache:  c,
		origin: origin,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy == nil {
		t.policy = NewWriteThroughPolicy(origin)
	}
	t.logger = t.logger.With().Str("table", name).Logger()
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// GetAll lists the table's records matching query. A nil query means "all".
func (t *Table) GetAll(ctx context.Context, query any) (any, error) {
	return t.read(ctx, invalidation.OpGetAll, query)
}

// Search runs a free-text search.
func (t *Table) Search(ctx context.Context, query any) (any, error) {
	return t.read(ctx, invalidation.OpSearch, query)
}

// Filter runs a structured filter.
func (t *Table) Filter(ctx context.Context, query any) (any, error) {
	return t.read(ctx, invalidation.OpFilter, query)
}

// GetByID reads one record. Its key is table:getById:<id> so a mutation of
// that record can target it.
func (t *Table) GetByID(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	key := invalidation.RecordNamespace(t.name, id)
	return t.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return t.origin.Read(ctx, Read{Table: t.name, Op: invalidation.OpGetByID, ID: id})
	})
}

func (t *Table) read(ctx context.Context, op string, query any) (any, error) {
	key, err := keys.Encode(invalidation.Namespace(t.name, op), query)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", t.name, op)
	}
	return t.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return t.origin.Read(ctx, Read{Table: t.name, Op: op, Query: query})
	})
}

// Create inserts payload and returns the record id. An empty id lets a
// write-through origin assign one.
func (t *Table) Create(ctx context.Context, id string, payload any) (string, error) {
	return t.write(ctx, Write{Table: t.name, Op: invalidation.Create, ID: id, Payload: payload})
}

// Update replaces the record with id.
func (t *Table) Update(ctx context.Context, id string, payload any) error {
	if id == "" {
		return ErrIDRequired
	}
	_, err := t.write(ctx, Write{Table: t.name, Op: invalidation.Update, ID: id, Payload: payload})
	return err
}

// Delete removes the record with id.
func (t *Table) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	_, err := t.write(ctx, Write{Table: t.name, Op: invalidation.Delete, ID: id})
	return err
}

func (t *Table) write(ctx context.Context, w Write) (string, error) {
	id, err := t.policy.Submit(ctx, w, func(id string) {
		t.invalidate(w.Op, id)
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s %s", w.Op, t.name)
	}
	return id, nil
}

// invalidate drops every cached read that m on record id may have made stale.
func (t *Table) invalidate(m invalidation.Mutation, id string) {
	removed := 0
	for _, p := range invalidation.MutationPatterns(t.name, m, id) {
		removed += t.cache.Invalidate(p)
	}
	t.logger.Debug().
		Str("mutation", string(m)).
		Str("id", id).
		Int("removed", removed).
		Msg("invalidated after write")
}

// Close flushes pending writes.
func (t *Table) Close() {
	t.policy.Close()
}
