package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// QuizAttempt is one learner's attempt at a single-block quiz.
type QuizAttempt struct {
	ent.Schema
}

func (QuizAttempt) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (QuizAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("quiz_id").NotEmpty().Immutable(),
		field.String("lesson_id").Immutable(),
		field.String("block_id").Immutable(),
		field.String("user_block_progress_id").Immutable(),
		field.Text("answers").Comment("JSON array of judged answers in submission order"),
		field.Float("score"),
		field.Float("max_score"),
		field.Float("percentage"),
		field.Int("correct_answers"),
		field.Int("total_questions"),
		field.Float("passing_threshold").Immutable(),
		field.Enum("status").Values("in_progress", "completed", "abandoned"),
		field.Time("started_at").Immutable(),
		field.Time("completed_at").Optional().Nillable(),
	}
}

func (QuizAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "quiz_id"),
		index.Fields("status"),
	}
}
