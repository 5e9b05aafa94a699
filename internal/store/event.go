package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// sequenceCounter manages the global monotonic sequence number stamped on
// every domain event. It gives a single ordering across event types and lets
// consumers resume with "sequence > last seen".
//
// The counter row lives in its own table; the RETURNING clause makes the
// increment atomic at the database level and the mutex serializes callers
// within the process.
type sequenceCounter struct {
	mu sync.Mutex
}

// newSequenceCounter ensures the tracking table exists and is seeded.
func newSequenceCounter(ctx context.Context, db *sqlx.DB) (*sequenceCounter, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val BIGINT NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO global_sequence (id, next_val) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{}, nil
}

// Next atomically returns the next sequence number and increments the
// counter. Inside a transaction ext must be the transaction.
func (sc *sequenceCounter) Next(ctx context.Context, ext sqlx.ExtContext) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := ext.QueryRowxContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

type eventRepo struct{ *repos }

func (r *eventRepo) Append(ctx context.Context, eventType, userID string, payload any) (*DomainEventRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	seq, err := r.seq.Next(ctx, r.ext)
	if err != nil {
		return nil, err
	}
	rec := &DomainEventRecord{
		ID:        uuid.NewString(),
		Sequence:  seq,
		Timestamp: At(time.Now().UTC()),
		Type:      eventType,
		UserID:    userID,
		Payload:   string(body),
	}
	if err := r.insert(ctx, tableDomainEvents, "domain_event", rec.ID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *eventRepo) QueryEvents(ctx context.Context, opts QueryOpts) ([]DomainEventRecord, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", At(opts.From)))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", At(opts.To)))
	}
	if opts.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", opts.UserID))
	}
	if opts.Type != "" {
		preds = append(preds, entsql.EQ("type", opts.Type))
	}

	s := r.b.Select("*").From(r.b.Table(tableDomainEvents))
	if len(preds) > 0 {
		s.Where(entsql.And(preds...))
	}
	s.OrderBy("sequence")
	if opts.Limit > 0 {
		s.Limit(opts.Limit)
	}
	q, args := s.Query()

	var out []DomainEventRecord
	if err := sqlx.SelectContext(ctx, r.ext, &out, q, args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}
