package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReviewEvent is the append-only log of vocabulary reviews.
type ReviewEvent struct {
	ent.Schema
}

func (ReviewEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("word_id").NotEmpty().Immutable(),
		field.Enum("response").Values("again", "hard", "good", "easy").Immutable(),
		field.Int64("latency_ms").Immutable(),
		field.Bool("correct").Immutable(),
		field.Int("interval_before").Immutable(),
		field.Int("interval_after").Immutable(),
		field.Float("ease_before").Immutable(),
		field.Float("ease_after").Immutable(),
		field.Int("mastery_before").Immutable(),
		field.Int("mastery_after").Immutable(),
		field.Time("reviewed_at").Immutable(),
	}
}

func (ReviewEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "word_id"),
		index.Fields("reviewed_at"),
	}
}
