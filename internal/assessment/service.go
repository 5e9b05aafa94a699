package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/store"
)

// Definitions resolves quiz and exam definitions.
type Definitions interface {
	Quiz(id string) (Quiz, bool)
	Exam(id string) (Exam, bool)
}

// Service persists quiz and exam attempts. Writes to one attempt are
// serialized and applied with version checks.
type Service struct {
	backend store.Backend
	defs    Definitions
	locks   *keylock.Map
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(backend store.Backend, defs Definitions, locks *keylock.Map, log logrus.FieldLogger) *Service {
	return &Service{
		backend: backend,
		defs:    defs,
		locks:   locks,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// StartQuiz opens a quiz attempt for the learner.
func (s *Service) StartQuiz(ctx context.Context, userID, quizID string, origin BlockRef) (*QuizAttempt, error) {
	quiz, ok := s.defs.Quiz(quizID)
	if !ok {
		return nil, errs.NotFound("quiz", quizID)
	}
	a, err := StartQuiz(uuid.NewString(), userID, quiz, origin, s.now())
	if err != nil {
		return nil, err
	}
	rec, err := quizToRecord(a)
	if err != nil {
		return nil, err
	}
	if err := s.backend.QuizAttempts().Insert(ctx, rec); err != nil {
		return nil, err
	}
	a.Version = rec.Version
	s.log.WithFields(logrus.Fields{"user_id": userID, "quiz_id": quizID, "attempt_id": a.ID}).Info("quiz started")
	return &a, nil
}

// QuizAttempt loads a quiz attempt.
func (s *Service) QuizAttempt(ctx context.Context, attemptID string) (*QuizAttempt, error) {
	a, err := loadQuiz(ctx, s.backend, attemptID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SubmitAnswer judges and stores one answer.
func (s *Service) SubmitAnswer(ctx context.Context, attemptID, questionID, response string) (*QuizAttempt, *Answer, error) {
	var (
		out QuizAttempt
		ans Answer
	)
	err := s.updateQuiz(ctx, attemptID, func(a QuizAttempt, quiz Quiz) (QuizAttempt, error) {
		next, judged, err := SubmitAnswer(a, quiz, questionID, response, s.now())
		ans = judged
		return next, err
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, &ans, nil
}

// CompleteQuiz scores the attempt. The returned BlockCompletion is non-nil
// when the attempt passed and was started from a block.
func (s *Service) CompleteQuiz(ctx context.Context, attemptID string) (*QuizAttempt, *BlockCompletion, error) {
	var (
		out        QuizAttempt
		completion *BlockCompletion
	)
	err := s.updateQuiz(ctx, attemptID, func(a QuizAttempt, _ Quiz) (QuizAttempt, error) {
		next, c, err := CompleteQuiz(a, s.now())
		completion = c
		return next, err
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    out.UserID,
		"attempt_id": out.ID,
		"percentage": out.Percentage,
		"passed":     out.IsPassed(),
	}).Info("quiz completed")
	return &out, completion, nil
}

// AbandonQuiz cancels a quiz attempt.
func (s *Service) AbandonQuiz(ctx context.Context, attemptID string) (*QuizAttempt, error) {
	var out QuizAttempt
	err := s.updateQuiz(ctx, attemptID, func(a QuizAttempt, _ Quiz) (QuizAttempt, error) {
		return AbandonQuiz(a, s.now())
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) updateQuiz(ctx context.Context, attemptID string, apply func(QuizAttempt, Quiz) (QuizAttempt, error), out *QuizAttempt) error {
	unlock := s.locks.Lock(keylock.Key("attempt", attemptID))
	defer unlock()

	return errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			a, err := loadQuiz(ctx, r, attemptID)
			if err != nil {
				return err
			}
			quiz, ok := s.defs.Quiz(a.QuizID)
			if !ok {
				return errs.NotFound("quiz", a.QuizID)
			}
			next, err := apply(a, quiz)
			if err != nil {
				return err
			}
			rec, err := quizToRecord(next)
			if err != nil {
				return err
			}
			if err := r.QuizAttempts().Update(ctx, rec); err != nil {
				return err
			}
			next.Version = rec.Version
			*out = next
			return nil
		})
	})
}

// StartExam opens an exam attempt; its first section opens immediately.
func (s *Service) StartExam(ctx context.Context, userID, examID string, origin BlockRef) (*ExamAttempt, error) {
	exam, ok := s.defs.Exam(examID)
	if !ok {
		return nil, errs.NotFound("exam", examID)
	}
	a, err := StartExam(uuid.NewString(), userID, exam, origin, s.now(), uuid.NewString)
	if err != nil {
		return nil, err
	}
	rec, err := examToRecord(a)
	if err != nil {
		return nil, err
	}
	if err := s.backend.InTx(ctx, func(r store.Repos) error {
		return r.ExamAttempts().Insert(ctx, rec)
	}); err != nil {
		return nil, err
	}
	a.Version = rec.Version
	s.log.WithFields(logrus.Fields{"user_id": userID, "exam_id": examID, "attempt_id": a.ID}).Info("exam started")
	return &a, nil
}

// ExamAttempt loads an exam attempt with its sections.
func (s *Service) ExamAttempt(ctx context.Context, attemptID string) (*ExamAttempt, error) {
	a, err := loadExam(ctx, s.backend, attemptID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveSectionAnswers stores draft responses on the open section.
func (s *Service) SaveSectionAnswers(ctx context.Context, attemptID, sectionID string, responses map[string]string) (*ExamAttempt, error) {
	var out ExamAttempt
	err := s.updateExam(ctx, attemptID, func(a ExamAttempt, exam Exam) (ExamAttempt, error) {
		return SaveSectionAnswers(a, exam, sectionID, responses, s.now())
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitSection scores and completes a section. It reports whether sections
// remain.
func (s *Service) SubmitSection(ctx context.Context, attemptID, sectionID string, responses map[string]string, timeSpent time.Duration) (*ExamAttempt, bool, error) {
	var (
		out  ExamAttempt
		more bool
	)
	err := s.updateExam(ctx, attemptID, func(a ExamAttempt, exam Exam) (ExamAttempt, error) {
		next, m, err := SubmitSection(a, exam, sectionID, responses, timeSpent, s.now())
		more = m
		return next, err
	}, &out)
	if err != nil {
		return nil, false, err
	}
	s.log.WithFields(logrus.Fields{"attempt_id": attemptID, "section_id": sectionID, "more": more}).Info("section submitted")
	return &out, more, nil
}

// ExpireSections force-submits the attempt's open section if its deadline
// has passed.
func (s *Service) ExpireSections(ctx context.Context, attemptID string) (*ExamAttempt, []string, error) {
	var (
		out     ExamAttempt
		expired []string
	)
	err := s.updateExam(ctx, attemptID, func(a ExamAttempt, exam Exam) (ExamAttempt, error) {
		next, ids, err := ExpireSections(a, exam, s.now())
		expired = ids
		return next, err
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	if len(expired) > 0 {
		s.log.WithFields(logrus.Fields{"attempt_id": attemptID, "sections": expired}).Warn("sections expired")
	}
	return &out, expired, nil
}

// CompleteExam completes an attempt whose sections are all submitted.
func (s *Service) CompleteExam(ctx context.Context, attemptID string) (*ExamAttempt, *BlockCompletion, error) {
	var (
		out        ExamAttempt
		completion *BlockCompletion
	)
	err := s.updateExam(ctx, attemptID, func(a ExamAttempt, _ Exam) (ExamAttempt, error) {
		next, c, err := CompleteExam(a, s.now())
		completion = c
		return next, err
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    out.UserID,
		"attempt_id": out.ID,
		"percentage": out.TotalPercentage,
		"passed":     out.IsPassed(),
	}).Info("exam completed")
	return &out, completion, nil
}

// AbandonExam cancels an exam attempt.
func (s *Service) AbandonExam(ctx context.Context, attemptID string) (*ExamAttempt, error) {
	var out ExamAttempt
	err := s.updateExam(ctx, attemptID, func(a ExamAttempt, _ Exam) (ExamAttempt, error) {
		return AbandonExam(a, s.now())
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// OverdueExamAttempts lists in-progress attempts whose open section is past
// its deadline at now.
func (s *Service) OverdueExamAttempts(ctx context.Context, now time.Time) ([]ExamAttempt, error) {
	recs, err := s.backend.ExamAttempts().ListInProgress(ctx)
	if err != nil {
		return nil, err
	}
	var out []ExamAttempt
	for _, rec := range recs {
		a, err := examFromRecord(rec)
		if err != nil {
			return nil, err
		}
		idx, open := a.CurrentSection()
		if !open {
			continue
		}
		if deadline, ok := a.Sections[idx].Deadline(); ok && !now.Before(deadline) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) updateExam(ctx context.Context, attemptID string, apply func(ExamAttempt, Exam) (ExamAttempt, error), out *ExamAttempt) error {
	unlock := s.locks.Lock(keylock.Key("attempt", attemptID))
	defer unlock()

	return errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			a, err := loadExam(ctx, r, attemptID)
			if err != nil {
				return err
			}
			exam, ok := s.defs.Exam(a.ExamID)
			if !ok {
				return errs.NotFound("exam", a.ExamID)
			}
			next, err := apply(a, exam)
			if err != nil {
				return err
			}
			rec, err := examToRecord(next)
			if err != nil {
				return err
			}
			if err := r.ExamAttempts().Update(ctx, rec); err != nil {
				return err
			}
			next.Version = rec.Version
			*out = next
			return nil
		})
	})
}

func loadQuiz(ctx context.Context, r store.Repos, id string) (QuizAttempt, error) {
	rec, err := r.QuizAttempts().Get(ctx, id)
	if err != nil {
		return QuizAttempt{}, fmt.Errorf("load quiz attempt: %w", err)
	}
	if rec == nil {
		return QuizAttempt{}, errs.NotFound("quiz_attempt", id)
	}
	return quizFromRecord(*rec)
}

func loadExam(ctx context.Context, r store.Repos, id string) (ExamAttempt, error) {
	rec, err := r.ExamAttempts().Get(ctx, id)
	if err != nil {
		return ExamAttempt{}, fmt.Errorf("load exam attempt: %w", err)
	}
	if rec == nil {
		return ExamAttempt{}, errs.NotFound("exam_attempt", id)
	}
	return examFromRecord(*rec)
}

func encodeAnswers(answers []Answer) (string, error) {
	if answers == nil {
		answers = []Answer{}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(b), nil
}

func decodeAnswers(s string) ([]Answer, error) {
	if s == "" {
		return nil, nil
	}
	var answers []Answer
	if err := json.Unmarshal([]byte(s), &answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if len(answers) == 0 {
		return nil, nil
	}
	return answers, nil
}

func quizToRecord(a QuizAttempt) (*store.QuizAttemptRecord, error) {
	answers, err := encodeAnswers(a.Answers)
	if err != nil {
		return nil, err
	}
	return &store.QuizAttemptRecord{
		ID:                  a.ID,
		UserID:              a.UserID,
		QuizID:              a.QuizID,
		LessonID:            a.Origin.LessonID,
		BlockID:             a.Origin.BlockID,
		UserBlockProgressID: a.Origin.UserBlockProgressID,
		Answers:             answers,
		Score:               a.Score,
		MaxScore:            a.MaxScore,
		Percentage:          a.Percentage,
		CorrectAnswers:      a.CorrectAnswers,
		TotalQuestions:      a.TotalQuestions,
		PassingThreshold:    a.PassingThreshold,
		Status:              string(a.Status),
		StartedAt:           store.At(a.StartedAt),
		CompletedAt:         store.TimeOf(a.CompletedAt),
		Version:             a.Version,
	}, nil
}

func quizFromRecord(rec store.QuizAttemptRecord) (QuizAttempt, error) {
	answers, err := decodeAnswers(rec.Answers)
	if err != nil {
		return QuizAttempt{}, err
	}
	return QuizAttempt{
		ID:     rec.ID,
		UserID: rec.UserID,
		QuizID: rec.QuizID,
		Origin: BlockRef{
			LessonID:            rec.LessonID,
			BlockID:             rec.BlockID,
			UserBlockProgressID: rec.UserBlockProgressID,
		},
		Answers:          answers,
		Score:            rec.Score,
		MaxScore:         rec.MaxScore,
		Percentage:       rec.Percentage,
		CorrectAnswers:   rec.CorrectAnswers,
		TotalQuestions:   rec.TotalQuestions,
		PassingThreshold: rec.PassingThreshold,
		Status:           Status(rec.Status),
		StartedAt:        rec.StartedAt.Time,
		CompletedAt:      rec.CompletedAt.Ptr(),
		Version:          rec.Version,
	}, nil
}

func examToRecord(a ExamAttempt) (*store.ExamAttemptRecord, error) {
	rec := &store.ExamAttemptRecord{
		ID:                 a.ID,
		UserID:             a.UserID,
		ExamID:             a.ExamID,
		LessonID:           a.Origin.LessonID,
		BlockID:            a.Origin.BlockID,
		Status:             string(a.Status),
		TotalScore:         a.TotalScore,
		MaxScore:           a.MaxScore,
		TotalPercentage:    a.TotalPercentage,
		TotalTimeSpentSecs: int64(a.TotalTimeSpent / time.Second),
		PassingThreshold:   a.PassingThreshold,
		StartedAt:          store.At(a.StartedAt),
		CompletedAt:        store.TimeOf(a.CompletedAt),
		Version:            a.Version,
	}
	for _, sec := range a.Sections {
		answers, err := encodeAnswers(sec.Answers)
		if err != nil {
			return nil, err
		}
		rec.Sections = append(rec.Sections, store.SectionAttemptRecord{
			ID:            sec.ID,
			ExamAttemptID: a.ID,
			SectionID:     sec.SectionID,
			Position:      sec.Position,
			Status:        string(sec.Status),
			Answers:       answers,
			Score:         sec.Score,
			MaxScore:      sec.MaxScore,
			Percentage:    sec.Percentage,
			TimeSpentSecs: int64(sec.TimeSpent / time.Second),
			TimeLimitSecs: int64(sec.TimeLimit / time.Second),
			OpenedAt:      store.TimeOf(sec.OpenedAt),
			CompletedAt:   store.TimeOf(sec.CompletedAt),
		})
	}
	return rec, nil
}

func examFromRecord(rec store.ExamAttemptRecord) (ExamAttempt, error) {
	sections := make([]SectionAttempt, 0, len(rec.Sections))
	for _, sr := range rec.Sections {
		answers, err := decodeAnswers(sr.Answers)
		if err != nil {
			return ExamAttempt{}, err
		}
		sections = append(sections, SectionAttempt{
			ID:          sr.ID,
			SectionID:   sr.SectionID,
			Position:    sr.Position,
			Status:      SectionStatus(sr.Status),
			Answers:     answers,
			Score:       sr.Score,
			MaxScore:    sr.MaxScore,
			Percentage:  sr.Percentage,
			TimeSpent:   time.Duration(sr.TimeSpentSecs) * time.Second,
			TimeLimit:   time.Duration(sr.TimeLimitSecs) * time.Second,
			OpenedAt:    sr.OpenedAt.Ptr(),
			CompletedAt: sr.CompletedAt.Ptr(),
		})
	}
	return ExamAttempt{
		ID:               rec.ID,
		UserID:           rec.UserID,
		ExamID:           rec.ExamID,
		Origin:           BlockRef{LessonID: rec.LessonID, BlockID: rec.BlockID},
		Status:           Status(rec.Status),
		Sections:         sections,
		TotalScore:       rec.TotalScore,
		MaxScore:         rec.MaxScore,
		TotalPercentage:  rec.TotalPercentage,
		TotalTimeSpent:   time.Duration(rec.TotalTimeSpentSecs) * time.Second,
		PassingThreshold: rec.PassingThreshold,
		StartedAt:        rec.StartedAt.Time,
		CompletedAt:      rec.CompletedAt.Ptr(),
		Version:          rec.Version,
	}, nil
}
