package progression

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/store"
)

// Domain event types emitted by the service.
const (
	EventBlockCompleted  = "block_completed"
	EventLessonCompleted = "lesson_completed"
)

// LessonSource resolves lesson definitions.
type LessonSource interface {
	Lesson(id string) (Lesson, bool)
}

// Service persists block progression. All writes for one learner and lesson
// are serialized and applied with version checks.
type Service struct {
	backend store.Backend
	lessons LessonSource
	locks   *keylock.Map
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(backend store.Backend, lessons LessonSource, locks *keylock.Map, log logrus.FieldLogger) *Service {
	return &Service{
		backend: backend,
		lessons: lessons,
		locks:   locks,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// StartLesson creates the learner's block records for a lesson. Starting a
// lesson twice returns the existing records.
func (s *Service) StartLesson(ctx context.Context, userID, lessonID string) ([]UserBlockProgress, error) {
	lesson, ok := s.lessons.Lesson(lessonID)
	if !ok {
		return nil, errs.NotFound("lesson", lessonID)
	}

	unlock := s.locks.Lock(keylock.Key("lesson", userID, lessonID))
	defer unlock()

	var out []UserBlockProgress
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			existing, err := load(ctx, r, userID, lessonID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				out = existing
				return nil
			}

			blocks, err := Initialize(userID, lesson, uuid.NewString)
			if err != nil {
				return err
			}
			for i := range blocks {
				rec := toRecord(blocks[i])
				if err := r.BlockProgress().Insert(ctx, &rec); err != nil {
					return err
				}
				blocks[i].Version = rec.Version
			}
			out = blocks
			s.log.WithFields(logrus.Fields{"user_id": userID, "lesson_id": lessonID}).Info("lesson started")
			return nil
		})
	})
	return out, err
}

// Lesson returns the learner's block records for a lesson in block order.
func (s *Service) Lesson(ctx context.Context, userID, lessonID string) ([]UserBlockProgress, error) {
	if _, ok := s.lessons.Lesson(lessonID); !ok {
		return nil, errs.NotFound("lesson", lessonID)
	}
	blocks, err := load(ctx, s.backend, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errs.NotFound("lesson_progress", userID+"/"+lessonID)
	}
	return blocks, nil
}

// RecordAttempt counts an attempt with its score and time spent.
func (s *Service) RecordAttempt(ctx context.Context, userID, lessonID, blockID string, score float64, timeSpent time.Duration) (*UserBlockProgress, error) {
	unlock := s.locks.Lock(keylock.Key("lesson", userID, lessonID))
	defer unlock()

	var out UserBlockProgress
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			blocks, err := s.loadStarted(ctx, r, userID, lessonID)
			if err != nil {
				return err
			}
			idx := indexOf(blocks, blockID)
			if idx < 0 {
				return errs.NotFound("block", blockID)
			}
			next, err := RecordAttempt(blocks[idx], score, timeSpent)
			if err != nil {
				return err
			}
			if err := save(ctx, r, &next); err != nil {
				return err
			}
			out = next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteBlock completes a block and unlocks its successor.
func (s *Service) CompleteBlock(ctx context.Context, userID, lessonID, blockID string) (*Completion, error) {
	unlock := s.locks.Lock(keylock.Key("lesson", userID, lessonID))
	defer unlock()

	var out Completion
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			blocks, err := s.loadStarted(ctx, r, userID, lessonID)
			if err != nil {
				return err
			}
			_, c, err := s.complete(ctx, r, blocks, blockID)
			if err != nil {
				return err
			}
			out = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteVocabularyBlocks completes, in order, every unlocked vocabulary
// block of the lesson whose words all reached the required mastery. A
// lesson the learner has not started is ignored.
func (s *Service) CompleteVocabularyBlocks(ctx context.Context, userID, lessonID string, mastery map[string]int) ([]Completion, error) {
	lesson, ok := s.lessons.Lesson(lessonID)
	if !ok {
		return nil, errs.NotFound("lesson", lessonID)
	}

	unlock := s.locks.Lock(keylock.Key("lesson", userID, lessonID))
	defer unlock()

	var out []Completion
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		out = nil
		return s.backend.InTx(ctx, func(r store.Repos) error {
			blocks, err := load(ctx, r, userID, lessonID)
			if err != nil || len(blocks) == 0 {
				return err
			}
			for _, def := range vocabularyBlocks(lesson) {
				idx := indexOf(blocks, def.ID)
				if idx < 0 || blocks[idx].Status == StatusCompleted || blocks[idx].IsLocked {
					continue
				}
				if !WordsMastered(def, mastery) {
					continue
				}
				var c Completion
				blocks, c, err = s.complete(ctx, r, blocks, def.ID)
				if err != nil {
					return err
				}
				out = append(out, c)
			}
			return nil
		})
	})
	return out, err
}

// complete applies CompleteBlock, writes the changed records and appends the
// matching domain events. It returns the lesson's records after the write.
func (s *Service) complete(ctx context.Context, r store.Repos, blocks []UserBlockProgress, blockID string) ([]UserBlockProgress, Completion, error) {
	updated, c, err := CompleteBlock(blocks, blockID, s.now())
	if err != nil || c.AlreadyCompleted {
		return blocks, c, err
	}

	if err := save(ctx, r, &c.Block); err != nil {
		return blocks, c, err
	}
	updated[indexOf(updated, c.Block.BlockID)] = c.Block
	if c.Unlocked != nil {
		if err := save(ctx, r, c.Unlocked); err != nil {
			return blocks, c, err
		}
		updated[indexOf(updated, c.Unlocked.BlockID)] = *c.Unlocked
	}

	payload := map[string]any{
		"lesson_id":   c.Block.LessonID,
		"block_id":    c.Block.BlockID,
		"block_order": c.Block.BlockOrder,
		"block_kind":  c.Block.BlockKind,
	}
	if c.Unlocked != nil {
		payload["unlocked_block_id"] = c.Unlocked.BlockID
	}
	if _, err := r.Events().Append(ctx, EventBlockCompleted, c.Block.UserID, payload); err != nil {
		return blocks, c, err
	}
	if c.LessonFinished {
		if _, err := r.Events().Append(ctx, EventLessonCompleted, c.Block.UserID,
			map[string]any{"lesson_id": c.Block.LessonID}); err != nil {
			return blocks, c, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"user_id":         c.Block.UserID,
		"lesson_id":       c.Block.LessonID,
		"block_id":        c.Block.BlockID,
		"lesson_finished": c.LessonFinished,
	}).Info("block completed")
	return updated, c, nil
}

// vocabularyBlocks returns the lesson's vocabulary blocks in block order.
func vocabularyBlocks(lesson Lesson) []Block {
	vocab := lo.Filter(lesson.Blocks, func(b Block, _ int) bool { return b.Kind == KindVocabulary })
	sort.Slice(vocab, func(i, j int) bool { return vocab[i].Order < vocab[j].Order })
	return vocab
}

func (s *Service) loadStarted(ctx context.Context, r store.Repos, userID, lessonID string) ([]UserBlockProgress, error) {
	blocks, err := load(ctx, r, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errs.PreconditionFailed("lesson %s not started", lessonID)
	}
	return blocks, nil
}

func load(ctx context.Context, r store.Repos, userID, lessonID string) ([]UserBlockProgress, error) {
	recs, err := r.BlockProgress().ListByLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load block progress: %w", err)
	}
	return lo.Map(recs, func(rec store.BlockProgressRecord, _ int) UserBlockProgress {
		return fromRecord(rec)
	}), nil
}

func save(ctx context.Context, r store.Repos, bp *UserBlockProgress) error {
	rec := toRecord(*bp)
	if err := r.BlockProgress().Update(ctx, &rec); err != nil {
		return err
	}
	bp.Version = rec.Version
	return nil
}

func fromRecord(rec store.BlockProgressRecord) UserBlockProgress {
	return UserBlockProgress{
		ID:               rec.ID,
		UserID:           rec.UserID,
		LessonID:         rec.LessonID,
		BlockID:          rec.BlockID,
		BlockKind:        Kind(rec.BlockKind),
		BlockOrder:       rec.BlockOrder,
		Status:           Status(rec.Status),
		IsLocked:         rec.IsLocked,
		Attempts:         rec.Attempts,
		LastAttemptScore: rec.LastAttemptScore,
		TimeSpent:        time.Duration(rec.TimeSpentSecs) * time.Second,
		CompletedAt:      rec.CompletedAt.Ptr(),
		Version:          rec.Version,
	}
}

func toRecord(bp UserBlockProgress) store.BlockProgressRecord {
	return store.BlockProgressRecord{
		ID:               bp.ID,
		UserID:           bp.UserID,
		LessonID:         bp.LessonID,
		BlockID:          bp.BlockID,
		BlockKind:        string(bp.BlockKind),
		BlockOrder:       bp.BlockOrder,
		Status:           string(bp.Status),
		IsLocked:         bp.IsLocked,
		Attempts:         bp.Attempts,
		LastAttemptScore: bp.LastAttemptScore,
		TimeSpentSecs:    int64(bp.TimeSpent / time.Second),
		CompletedAt:      store.TimeOf(bp.CompletedAt),
		Version:          bp.Version,
	}
}
