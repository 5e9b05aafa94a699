package store

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	entsql "entgo.io/ent/dialect/sql"
	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/abhisek/lingva/ent/schema"
	"github.com/jmoiron/sqlx"
)

// Table names.
const (
	tableWordProgress    = "word_progress"
	tableReviewEvents    = "review_events"
	tableBlockProgress   = "user_block_progress"
	tableQuizAttempts    = "quiz_attempts"
	tableExamAttempts    = "exam_attempts"
	tableSectionAttempts = "section_attempts"
	tableAchievements    = "user_achievements"
	tableStatistics      = "user_statistics"
	tableDomainEvents    = "domain_events"
)

// tables pairs every table with the ent schema that declares it.
var tables = []struct {
	name   string
	schema ent.Interface
}{
	{tableWordProgress, schema.WordProgress{}},
	{tableReviewEvents, schema.ReviewEvent{}},
	{tableBlockProgress, schema.UserBlockProgress{}},
	{tableQuizAttempts, schema.QuizAttempt{}},
	{tableExamAttempts, schema.ExamAttempt{}},
	{tableSectionAttempts, schema.SectionAttempt{}},
	{tableAchievements, schema.UserAchievement{}},
	{tableStatistics, schema.UserStatistics{}},
	{tableDomainEvents, schema.DomainEvent{}},
}

// migrate creates missing tables, columns and indexes from the ent schema
// declarations using ent's migration engine.
func migrate(ctx context.Context, db *sqlx.DB, dia string) error {
	defs := make([]*entschema.Table, 0, len(tables))
	for _, t := range tables {
		tbl, err := migrationTable(t.name, t.schema)
		if err != nil {
			return err
		}
		defs = append(defs, tbl)
	}

	m, err := entschema.NewMigrate(entsql.OpenDB(dia, db.DB))
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	return m.Create(ctx, defs...)
}

// migrationTable describes s as an ent migration table. The "id" field is
// the primary key.
func migrationTable(name string, s ent.Interface) (*entschema.Table, error) {
	var (
		fields  []ent.Field
		indexes []ent.Index
	)
	for _, m := range s.Mixin() {
		fields = append(fields, m.Fields()...)
		indexes = append(indexes, m.Indexes()...)
	}
	fields = append(fields, s.Fields()...)
	indexes = append(indexes, s.Indexes()...)

	tbl := entschema.NewTable(name)
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		typ, err := columnType(d.Info.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, err)
		}
		col := &entschema.Column{
			Name:     d.Name,
			Type:     typ,
			Size:     int64(d.Size),
			Nullable: d.Optional || d.Nillable,
		}
		if d.Name == "id" {
			tbl.AddPrimary(col)
			continue
		}
		col.Unique = d.Unique
		tbl.AddColumn(col)
	}
	for _, idx := range indexes {
		d := idx.Descriptor()
		tbl.AddIndex(name+"_"+strings.Join(d.Fields, "_"), d.Unique, d.Fields)
	}
	return tbl, nil
}

// columnType maps ent field types to the column types this store reads and
// writes. Times are stored as fixed width UTC text and enums as plain
// strings, so both land in string columns.
func columnType(t field.Type) (field.Type, error) {
	switch t {
	case field.TypeString, field.TypeEnum, field.TypeTime, field.TypeJSON:
		return field.TypeString, nil
	case field.TypeBool:
		return field.TypeBool, nil
	case field.TypeFloat32, field.TypeFloat64:
		return field.TypeFloat64, nil
	case field.TypeInt, field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64,
		field.TypeUint, field.TypeUint8, field.TypeUint16, field.TypeUint32, field.TypeUint64:
		return field.TypeInt64, nil
	default:
		return field.TypeInvalid, fmt.Errorf("unsupported field type %s", t)
	}
}
