package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExamAttempt is one learner's attempt at a multi-section exam. Its sections
// are written together with it and share its version.
type ExamAttempt struct {
	ent.Schema
}

func (ExamAttempt) Mixin() []ent.Mixin {
	return []ent.Mixin{VersionMixin{}}
}

func (ExamAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.String("exam_id").NotEmpty().Immutable(),
		field.String("lesson_id").Immutable(),
		field.String("block_id").Immutable(),
		field.Enum("status").Values("in_progress", "completed", "abandoned"),
		field.Float("total_score"),
		field.Float("max_score"),
		field.Float("total_percentage"),
		field.Int64("total_time_spent_secs"),
		field.Float("passing_threshold").Immutable(),
		field.Time("started_at").Immutable(),
		field.Time("completed_at").Optional().Nillable(),
	}
}

func (ExamAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "exam_id"),
		index.Fields("status"),
	}
}

// SectionAttempt is the timed part of an exam attempt for one exam section.
type SectionAttempt struct {
	ent.Schema
}

func (SectionAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("exam_attempt_id").NotEmpty().Immutable(),
		field.String("section_id").NotEmpty().Immutable(),
		field.Int("position").NonNegative().Immutable(),
		field.Enum("status").Values("in_progress", "completed"),
		field.Text("answers").Comment("JSON array of recorded answers"),
		field.Float("score"),
		field.Float("max_score"),
		field.Float("percentage"),
		field.Int64("time_spent_secs"),
		field.Int64("time_limit_secs").Immutable(),
		field.Time("opened_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
	}
}

func (SectionAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("exam_attempt_id", "section_id").Unique(),
	}
}
