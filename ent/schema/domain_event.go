package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DomainEvent records a progress event (block completed, achievement
// unlocked, ...) for notification consumers.
type DomainEvent struct {
	ent.Schema
}

func (DomainEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (DomainEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("type").NotEmpty().Immutable(),
		field.String("user_id").NotEmpty().Immutable(),
		field.Text("payload").Immutable().Comment("JSON encoded event body"),
	}
}

func (DomainEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "type"),
	}
}
