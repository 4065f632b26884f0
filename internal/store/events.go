package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo on the events table and the global
// sequence counter.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) AppendAPICall(ctx context.Context, data APICallEventData) error {
	summary := fmt.Sprintf("%s %s -> %d", data.Method, data.Path, data.Status)
	if data.Attempts > 1 {
		summary += fmt.Sprintf(" (%d attempts)", data.Attempts)
	}
	return r.append(ctx, KindAPICall, data.Success, data.LatencyMs, summary, data)
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	summary := fmt.Sprintf("%s %s (%d in / %d out tokens)", data.Purpose, data.Model, data.InputTokens, data.OutputTokens)
	return r.append(ctx, KindLLMRequest, data.Success, data.LatencyMs, summary, data)
}

func (r *eventRepo) AppendSettlement(ctx context.Context, data SettlementEventData) error {
	var summary string
	switch data.Action {
	case "submit":
		summary = fmt.Sprintf("level %d quiz %d/%d passed=%t", data.LevelID, data.Score, data.Total, data.Passed)
	case "settle":
		summary = fmt.Sprintf("level %d settled balance=%d badge=%q", data.LevelID, data.NewBalance, data.BadgeName)
	default:
		summary = fmt.Sprintf("level %d %s", data.LevelID, data.Action)
	}
	return r.append(ctx, KindSettlement, data.Success, 0, summary, data)
}

func (r *eventRepo) append(ctx context.Context, kind string, success bool, latencyMs int64, summary string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(eventsTable).
		Columns("sequence", "timestamp", "kind", "success", "latency_ms", "summary", "data").
		Values(seqNum, time.Now().UnixNano(), kind, success, latencyMs, summary, string(payload)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s event: %w", kind, err)
	}
	return nil
}

func eventColumns(t *entsql.SelectTable) []string {
	return []string{
		t.C("id"), t.C("sequence"), t.C("timestamp"), t.C("kind"),
		t.C("success"), t.C("latency_ms"), t.C("summary"), t.C("data"),
	}
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e    Event
		ts   int64
		data string
	)
	if err := rows.Scan(&e.ID, &e.Sequence, &ts, &e.Kind, &e.Success, &e.LatencyMs, &e.Summary, &data); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	e.Data = json.RawMessage(data)
	return e, nil
}

func (r *eventRepo) Get(ctx context.Context, id int) (*Event, error) {
	b := builder()
	t := b.Table(eventsTable)
	query, args := b.Select(eventColumns(t)...).
		From(t).
		Where(entsql.EQ(t.C("id"), id)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepo) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	b := builder()
	t := b.Table(eventsTable)
	sel := b.Select(eventColumns(t)...).
		From(t).
		OrderBy(entsql.Desc(t.C("sequence")))

	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	if opts.After > 0 {
		sel = sel.Where(entsql.GT(t.C("sequence"), opts.After))
	}
	if opts.Before > 0 {
		sel = sel.Where(entsql.LT(t.C("sequence"), opts.Before))
	}
	if !opts.From.IsZero() {
		sel = sel.Where(entsql.GTE(t.C("timestamp"), opts.From.UnixNano()))
	}
	if !opts.To.IsZero() {
		sel = sel.Where(entsql.LTE(t.C("timestamp"), opts.To.UnixNano()))
	}
	if opts.Kind != "" {
		sel = sel.Where(entsql.EQ(t.C("kind"), opts.Kind))
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) Stats(ctx context.Context) ([]KindStats, error) {
	b := builder()
	t := b.Table(eventsTable)
	query, args := b.Select(
		t.C("kind"),
		entsql.Count("*"),
		"SUM(CASE WHEN "+t.C("success")+" THEN 0 ELSE 1 END)",
		"COALESCE(AVG("+t.C("latency_ms")+"), 0)",
	).
		From(t).
		GroupBy(t.C("kind")).
		OrderBy(t.C("kind")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event stats: %w", err)
	}
	defer rows.Close()

	var out []KindStats
	for rows.Next() {
		var ks KindStats
		if err := rows.Scan(&ks.Kind, &ks.Total, &ks.Failures, &ks.AvgMs); err != nil {
			return nil, fmt.Errorf("scan event stats: %w", err)
		}
		out = append(out, ks)
	}
	return out, rows.Err()
}
