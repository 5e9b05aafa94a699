package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

type blockProgressRepo struct{ *repos }

func (r *blockProgressRepo) ListByLesson(ctx context.Context, userID, lessonID string) ([]BlockProgressRecord, error) {
	var out []BlockProgressRecord
	err := r.selectAll(ctx, &out, tableBlockProgress,
		entsql.And(entsql.EQ("user_id", userID), entsql.EQ("lesson_id", lessonID)), "block_order")
	return out, err
}

func (r *blockProgressRepo) Insert(ctx context.Context, rec *BlockProgressRecord) error {
	rec.Version = 1
	return r.insert(ctx, tableBlockProgress, "user_block_progress", rec.ID, rec)
}

func (r *blockProgressRepo) Update(ctx context.Context, rec *BlockProgressRecord) error {
	if err := r.updateVersioned(ctx, tableBlockProgress, "user_block_progress", rec.ID, rec.Version, rec); err != nil {
		return err
	}
	rec.Version++
	return nil
}
