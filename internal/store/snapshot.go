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

// snapshotRepo implements SnapshotRepo on the snapshots table.
type snapshotRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}

	if snap.Sequence == 0 {
		seq, err := r.seq.Next(ctx)
		if err != nil {
			return err
		}
		snap.Sequence = seq
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	query, args := builder().Insert(snapshotsTable).
		Columns("sequence", "timestamp", "data").
		Values(snap.Sequence, snap.Timestamp.UnixNano(), string(data)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context) (*Snapshot, error) {
	snaps, err := r.List(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func (r *snapshotRepo) List(ctx context.Context, limit int) ([]Snapshot, error) {
	b := builder()
	t := b.Table(snapshotsTable)
	sel := b.Select(t.C("id"), t.C("sequence"), t.C("timestamp"), t.C("data")).
		From(t).
		OrderBy(entsql.Desc(t.C("timestamp")), entsql.Desc(t.C("id")))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			s    Snapshot
			ts   int64
			data string
		)
		if err := rows.Scan(&s.ID, &s.Sequence, &ts, &data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(data), &s.Data); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *snapshotRepo) Prune(ctx context.Context, keep int) error {
	// Find the threshold: the first snapshot past the N most recent.
	b := builder()
	t := b.Table(snapshotsTable)
	query, args := b.Select(t.C("id"), t.C("timestamp")).
		From(t).
		OrderBy(entsql.Desc(t.C("timestamp")), entsql.Desc(t.C("id"))).
		Limit(1).
		Offset(keep).
		Query()

	var (
		id int
		ts int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = builder().Delete(snapshotsTable).
		Where(entsql.Or(
			entsql.LT("timestamp", ts),
			entsql.And(entsql.EQ("timestamp", ts), entsql.LTE("id", id)),
		)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
