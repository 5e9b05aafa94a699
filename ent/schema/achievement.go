package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserAchievement records a learner's progress towards one achievement.
type UserAchievement struct {
	ent.Schema
}

func (UserAchievement) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (UserAchievement) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("achievement_id").NotEmpty().Immutable(),
		field.Int("progress").Range(0, 100),
		field.Bool("is_completed"),
		field.Time("unlocked_at").Optional().Nillable(),
	}
}

func (UserAchievement) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "achievement_id").Unique(),
	}
}

// UserStatistics is the per-learner statistics snapshot. XP columns are only
// written by achievement synchronization.
type UserStatistics struct {
	ent.Schema
}

func (UserStatistics) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (UserStatistics) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable().Comment("The learner id"),
		field.Int64("total_xp"),
		field.Int64("weekly_xp"),
		field.Int64("monthly_xp"),
		field.Time("last_xp_update").Optional().Nillable(),
		field.Int("current_streak"),
		field.Int("longest_streak"),
		field.Int("total_words_learned"),
		field.Int("total_reviews"),
		field.Int("quizzes_passed"),
		field.Int("exams_passed"),
		field.Int("blocks_completed"),
		field.Int("lessons_completed"),
		field.Time("last_activity_at").Optional().Nillable(),
	}
}
