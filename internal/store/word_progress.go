package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

type wordProgressRepo struct{ *repos }

func (r *wordProgressRepo) Get(ctx context.Context, userID, wordID string) (*WordProgressRecord, error) {
	var rec WordProgressRecord
	ok, err := r.selectOne(ctx, &rec, tableWordProgress,
		entsql.And(entsql.EQ("user_id", userID), entsql.EQ("word_id", wordID)))
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *wordProgressRepo) ListByUser(ctx context.Context, userID string) ([]WordProgressRecord, error) {
	var out []WordProgressRecord
	err := r.selectAll(ctx, &out, tableWordProgress, entsql.EQ("user_id", userID), "word_id")
	return out, err
}

func (r *wordProgressRepo) ListDue(ctx context.Context, userID string, now time.Time) ([]WordProgressRecord, error) {
	var out []WordProgressRecord
	err := r.selectAll(ctx, &out, tableWordProgress, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.Or(entsql.IsNull("next_review_at"), entsql.LTE("next_review_at", At(now))),
	), "next_review_at", "word_id")
	return out, err
}

func (r *wordProgressRepo) Insert(ctx context.Context, rec *WordProgressRecord) error {
	rec.Version = 1
	return r.insert(ctx, tableWordProgress, "word_progress", rec.ID, rec)
}

func (r *wordProgressRepo) Update(ctx context.Context, rec *WordProgressRecord) error {
	if err := r.updateVersioned(ctx, tableWordProgress, "word_progress", rec.ID, rec.Version, rec); err != nil {
		return err
	}
	rec.Version++
	return nil
}

type reviewEventRepo struct{ *repos }

func (r *reviewEventRepo) Append(ctx context.Context, rec *ReviewEventRecord) error {
	return r.insert(ctx, tableReviewEvents, "review_event", rec.ID, rec)
}

func (r *reviewEventRepo) ListByWord(ctx context.Context, userID, wordID string) ([]ReviewEventRecord, error) {
	var out []ReviewEventRecord
	err := r.selectAll(ctx, &out, tableReviewEvents,
		entsql.And(entsql.EQ("user_id", userID), entsql.EQ("word_id", wordID)), "reviewed_at")
	return out, err
}

func (r *reviewEventRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	q, args := r.b.Select(entsql.Count("*")).
		From(r.b.Table(tableReviewEvents)).
		Where(entsql.EQ("user_id", userID)).
		Query()
	var n int
	if err := sqlx.GetContext(ctx, r.ext, &n, q, args...); err != nil {
		return 0, fmt.Errorf("count review events: %w", err)
	}
	return n, nil
}
