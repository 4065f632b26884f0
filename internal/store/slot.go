package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// slotRepo implements SlotRepo on the slots table.
type slotRepo struct {
	db *sql.DB
}

func (r *slotRepo) Get(ctx context.Context, name string, v any) (bool, error) {
	b := builder()
	t := b.Table(slotsTable)
	query, args := b.Select(t.C("data")).
		From(t).
		Where(entsql.EQ(t.C("name"), name)).
		Query()

	var data string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read slot %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("decode slot %q: %w", name, err)
	}
	return true, nil
}

func (r *slotRepo) Put(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slot %q: %w", name, err)
	}

	query, args := builder().Insert(slotsTable).
		Columns("name", "data", "updated_at").
		Values(name, string(data), time.Now().UnixNano()).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write slot %q: %w", name, err)
	}
	return nil
}

func (r *slotRepo) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = n
	}
	query, args := builder().Delete(slotsTable).
		Where(entsql.In("name", vals...)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return nil
}
