package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

type quizAttemptRepo struct{ *repos }

func (r *quizAttemptRepo) Get(ctx context.Context, id string) (*QuizAttemptRecord, error) {
	var rec QuizAttemptRecord
	ok, err := r.selectOne(ctx, &rec, tableQuizAttempts, entsql.EQ("id", id))
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *quizAttemptRepo) ListByUser(ctx context.Context, userID string) ([]QuizAttemptRecord, error) {
	var out []QuizAttemptRecord
	err := r.selectAll(ctx, &out, tableQuizAttempts, entsql.EQ("user_id", userID), "started_at")
	return out, err
}

func (r *quizAttemptRepo) Insert(ctx context.Context, rec *QuizAttemptRecord) error {
	rec.Version = 1
	return r.insert(ctx, tableQuizAttempts, "quiz_attempt", rec.ID, rec)
}

func (r *quizAttemptRepo) Update(ctx context.Context, rec *QuizAttemptRecord) error {
	if err := r.updateVersioned(ctx, tableQuizAttempts, "quiz_attempt", rec.ID, rec.Version, rec); err != nil {
		return err
	}
	rec.Version++
	return nil
}

type examAttemptRepo struct{ *repos }

func (r *examAttemptRepo) Get(ctx context.Context, id string) (*ExamAttemptRecord, error) {
	var rec ExamAttemptRecord
	ok, err := r.selectOne(ctx, &rec, tableExamAttempts, entsql.EQ("id", id))
	if err != nil || !ok {
		return nil, err
	}
	if err := r.loadSections(ctx, []*ExamAttemptRecord{&rec}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *examAttemptRepo) ListInProgress(ctx context.Context) ([]ExamAttemptRecord, error) {
	var out []ExamAttemptRecord
	if err := r.selectAll(ctx, &out, tableExamAttempts, entsql.EQ("status", "in_progress"), "started_at"); err != nil {
		return nil, err
	}
	ptrs := make([]*ExamAttemptRecord, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.loadSections(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// loadSections fills Sections for every attempt with one query.
func (r *examAttemptRepo) loadSections(ctx context.Context, attempts []*ExamAttemptRecord) error {
	if len(attempts) == 0 {
		return nil
	}
	ids := lo.Map(attempts, func(a *ExamAttemptRecord, _ int) any { return a.ID })
	var sections []SectionAttemptRecord
	if err := r.selectAll(ctx, &sections, tableSectionAttempts,
		entsql.In("exam_attempt_id", ids...), "exam_attempt_id", "position"); err != nil {
		return err
	}
	byAttempt := lo.GroupBy(sections, func(s SectionAttemptRecord) string { return s.ExamAttemptID })
	for _, a := range attempts {
		a.Sections = byAttempt[a.ID]
	}
	return nil
}

func (r *examAttemptRepo) Insert(ctx context.Context, rec *ExamAttemptRecord) error {
	rec.Version = 1
	if err := r.insert(ctx, tableExamAttempts, "exam_attempt", rec.ID, rec); err != nil {
		return err
	}
	for i := range rec.Sections {
		sec := &rec.Sections[i]
		sec.ExamAttemptID = rec.ID
		if err := r.insert(ctx, tableSectionAttempts, "section_attempt", sec.ID, sec); err != nil {
			return err
		}
	}
	return nil
}

// Update writes the attempt under its version check, then rewrites each
// section. Sections carry no version of their own.
func (r *examAttemptRepo) Update(ctx context.Context, rec *ExamAttemptRecord) error {
	if err := r.updateVersioned(ctx, tableExamAttempts, "exam_attempt", rec.ID, rec.Version, rec); err != nil {
		return err
	}
	for i := range rec.Sections {
		sec := &rec.Sections[i]
		cols, vals := columnsOf(sec)
		u := r.b.Update(tableSectionAttempts)
		for j, c := range cols {
			if c == "id" {
				continue
			}
			u.Set(c, vals[j])
		}
		q, args := u.Where(entsql.EQ("id", sec.ID)).Query()
		if _, err := r.ext.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("update section attempt %s: %w", sec.ID, err)
		}
	}
	rec.Version++
	return nil
}
