package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// WordProgress holds one learner's review state for one word.
type WordProgress struct {
	ent.Schema
}

func (WordProgress) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (WordProgress) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("word_id").NotEmpty().Immutable(),
		field.Int("mastery_level").Range(0, 5),
		field.Int("times_reviewed").NonNegative(),
		field.Int("times_correct").NonNegative(),
		field.Int("times_incorrect").NonNegative(),
		field.Time("last_reviewed_at").Optional().Nillable(),
		field.Time("next_review_at").Optional().Nillable(),
		field.Int("interval_days").Min(1),
		field.Float("ease_factor").Min(1.3),
		field.String("recent_responses").
			Comment("Comma separated, oldest first, at most two"),
		field.Time("learned_at").Optional().Nillable(),
	}
}

func (WordProgress) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "word_id").Unique(),
		index.Fields("user_id", "next_review_at"),
	}
}
