package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserBlockProgress tracks one learner's state on one block of a lesson.
type UserBlockProgress struct {
	ent.Schema
}

func (UserBlockProgress) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (UserBlockProgress) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("lesson_id").NotEmpty().Immutable(),
		field.String("block_id").NotEmpty().Immutable(),
		field.String("block_kind").NotEmpty().Immutable(),
		field.Int("block_order").NonNegative().Immutable(),
		field.Enum("status").Values("locked", "not_started", "in_progress", "completed"),
		field.Bool("is_locked"),
		field.Int("attempts").NonNegative(),
		field.Float("last_attempt_score").Optional().Nillable(),
		field.Int64("time_spent_secs").NonNegative(),
		field.Time("completed_at").Optional().Nillable(),
	}
}

func (UserBlockProgress) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "lesson_id", "block_id").Unique(),
		index.Fields("user_id", "lesson_id", "block_order").Unique(),
	}
}
