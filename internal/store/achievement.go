package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

type achievementRepo struct{ *repos }

func (r *achievementRepo) ListByUser(ctx context.Context, userID string) ([]UserAchievementRecord, error) {
	var out []UserAchievementRecord
	err := r.selectAll(ctx, &out, tableAchievements, entsql.EQ("user_id", userID), "achievement_id")
	return out, err
}

func (r *achievementRepo) Insert(ctx context.Context, rec *UserAchievementRecord) error {
	rec.Version = 1
	return r.insert(ctx, tableAchievements, "user_achievement", rec.ID, rec)
}

func (r *achievementRepo) Update(ctx context.Context, rec *UserAchievementRecord) error {
	if err := r.updateVersioned(ctx, tableAchievements, "user_achievement", rec.ID, rec.Version, rec); err != nil {
		return err
	}
	rec.Version++
	return nil
}

type statisticsRepo struct{ *repos }

func (r *statisticsRepo) Get(ctx context.Context, userID string) (*StatisticsRecord, error) {
	var rec StatisticsRecord
	ok, err := r.selectOne(ctx, &rec, tableStatistics, entsql.EQ("id", userID))
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *statisticsRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	q, args := r.b.Select("id").From(r.b.Table(tableStatistics)).OrderBy("id").Query()
	var ids []string
	if err := sqlx.SelectContext(ctx, r.ext, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("list statistics users: %w", err)
	}
	return ids, nil
}

func (r *statisticsRepo) Insert(ctx context.Context, rec *StatisticsRecord) error {
	rec.Version = 1
	return r.insert(ctx, tableStatistics, "user_statistics", rec.UserID, rec)
}

func (r *statisticsRepo) Update(ctx context.Context, rec *StatisticsRecord) error {
	if err := r.updateVersioned(ctx, tableStatistics, "user_statistics", rec.UserID, rec.Version, rec); err != nil {
		return err
	}
	rec.Version++
	return nil
}
