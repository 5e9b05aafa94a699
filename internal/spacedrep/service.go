package spacedrep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/store"
)

// EventWordLearned is emitted the first time a word reaches MaxMasteryLevel.
const EventWordLearned = "word_learned"

// WordLookup reports whether a word exists.
type WordLookup interface {
	HasWord(wordID string) bool
}

// ReviewResult is the outcome of a persisted review.
type ReviewResult struct {
	Progress WordProgress
	Event    ReviewEvent
	// Learned is true when this review took the word to full mastery for
	// the first time.
	Learned bool
}

// Service loads, schedules and stores word reviews. Reviews of the same
// learner and word are applied one at a time.
type Service struct {
	backend store.Backend
	words   WordLookup
	locks   *keylock.Map
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a Service. words may be nil to accept any word id.
func NewService(backend store.Backend, words WordLookup, locks *keylock.Map, log logrus.FieldLogger) *Service {
	return &Service{
		backend: backend,
		words:   words,
		locks:   locks,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Review records a response for the learner's word, creating the progress
// record on first review.
func (s *Service) Review(ctx context.Context, userID, wordID string, response Response, latency time.Duration) (*ReviewResult, error) {
	if userID == "" {
		return nil, errs.InvalidArgument("user_id", "must not be empty")
	}
	if wordID == "" {
		return nil, errs.InvalidArgument("word_id", "must not be empty")
	}
	if s.words != nil && !s.words.HasWord(wordID) {
		return nil, errs.NotFound("word", wordID)
	}

	unlock := s.locks.Lock(keylock.Key("word", userID, wordID))
	defer unlock()

	var result *ReviewResult
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			res, err := s.review(ctx, r, userID, wordID, response, latency)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"word_id":  wordID,
		"response": response,
		"interval": result.Progress.IntervalDays,
		"mastery":  result.Progress.MasteryLevel,
	}).Debug("review recorded")
	if result.Learned {
		s.log.WithFields(logrus.Fields{"user_id": userID, "word_id": wordID}).Info("word learned")
	}
	return result, nil
}

func (s *Service) review(ctx context.Context, r store.Repos, userID, wordID string, response Response, latency time.Duration) (*ReviewResult, error) {
	rec, err := r.WordProgress().Get(ctx, userID, wordID)
	if err != nil {
		return nil, fmt.Errorf("load word progress: %w", err)
	}
	prior := NewWordProgress(userID, wordID)
	prior.ID = uuid.NewString()
	if rec != nil {
		prior = progressFromRecord(*rec)
	}

	updated, event, err := RecordReview(prior, response, latency, s.now())
	if err != nil {
		return nil, err
	}
	event.ID = uuid.NewString()

	out := progressToRecord(updated)
	if rec == nil {
		err = r.WordProgress().Insert(ctx, &out)
	} else {
		err = r.WordProgress().Update(ctx, &out)
	}
	if err != nil {
		return nil, err
	}
	updated.Version = out.Version

	if err := r.ReviewEvents().Append(ctx, eventToRecord(event)); err != nil {
		return nil, err
	}

	learned := prior.LearnedAt == nil && updated.LearnedAt != nil
	if learned {
		payload := map[string]any{"word_id": wordID, "reviews": updated.TimesReviewed}
		if _, err := r.Events().Append(ctx, EventWordLearned, userID, payload); err != nil {
			return nil, err
		}
	}
	return &ReviewResult{Progress: updated, Event: event, Learned: learned}, nil
}

// Progress returns the learner's stored progress for a word, or nil if the
// word was never reviewed.
func (s *Service) Progress(ctx context.Context, userID, wordID string) (*WordProgress, error) {
	rec, err := s.backend.WordProgress().Get(ctx, userID, wordID)
	if err != nil || rec == nil {
		return nil, err
	}
	p := progressFromRecord(*rec)
	return &p, nil
}

// All returns every word the learner has reviewed, ordered by word id.
func (s *Service) All(ctx context.Context, userID string) ([]WordProgress, error) {
	recs, err := s.backend.WordProgress().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(recs, func(rec store.WordProgressRecord, _ int) WordProgress {
		return progressFromRecord(rec)
	}), nil
}

// Due returns the learner's words due at now, most overdue first. limit <= 0
// returns all of them.
func (s *Service) Due(ctx context.Context, userID string, now time.Time, limit int) ([]WordProgress, error) {
	recs, err := s.backend.WordProgress().ListDue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	progress := lo.Map(recs, func(rec store.WordProgressRecord, _ int) WordProgress {
		return progressFromRecord(rec)
	})
	return DueWords(progress, now, limit), nil
}

// MasteryByWord returns the learner's mastery level for each requested word.
// Words never reviewed are reported at 0.
func (s *Service) MasteryByWord(ctx context.Context, userID string, wordIDs []string) (map[string]int, error) {
	all, err := s.All(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := lo.Associate(all, func(p WordProgress) (string, int) { return p.WordID, p.MasteryLevel })
	out := make(map[string]int, len(wordIDs))
	for _, id := range wordIDs {
		out[id] = known[id]
	}
	return out, nil
}

func progressFromRecord(rec store.WordProgressRecord) WordProgress {
	return WordProgress{
		ID:              rec.ID,
		UserID:          rec.UserID,
		WordID:          rec.WordID,
		MasteryLevel:    rec.MasteryLevel,
		TimesReviewed:   rec.TimesReviewed,
		TimesCorrect:    rec.TimesCorrect,
		TimesIncorrect:  rec.TimesIncorrect,
		LastReviewedAt:  rec.LastReviewedAt.Ptr(),
		NextReviewAt:    rec.NextReviewAt.Ptr(),
		IntervalDays:    rec.IntervalDays,
		EaseFactor:      rec.EaseFactor,
		RecentResponses: parseRecent(rec.RecentResponses),
		LearnedAt:       rec.LearnedAt.Ptr(),
		Version:         rec.Version,
	}
}

func progressToRecord(p WordProgress) store.WordProgressRecord {
	return store.WordProgressRecord{
		ID:              p.ID,
		UserID:          p.UserID,
		WordID:          p.WordID,
		MasteryLevel:    p.MasteryLevel,
		TimesReviewed:   p.TimesReviewed,
		TimesCorrect:    p.TimesCorrect,
		TimesIncorrect:  p.TimesIncorrect,
		LastReviewedAt:  store.TimeOf(p.LastReviewedAt),
		NextReviewAt:    store.TimeOf(p.NextReviewAt),
		IntervalDays:    p.IntervalDays,
		EaseFactor:      p.EaseFactor,
		RecentResponses: formatRecent(p.RecentResponses),
		LearnedAt:       store.TimeOf(p.LearnedAt),
		Version:         p.Version,
	}
}

func eventToRecord(e ReviewEvent) *store.ReviewEventRecord {
	return &store.ReviewEventRecord{
		ID:             e.ID,
		UserID:         e.UserID,
		WordID:         e.WordID,
		Response:       string(e.Response),
		LatencyMs:      e.Latency.Milliseconds(),
		Correct:        e.Correct,
		IntervalBefore: e.IntervalBefore,
		IntervalAfter:  e.IntervalAfter,
		EaseBefore:     e.EaseBefore,
		EaseAfter:      e.EaseAfter,
		MasteryBefore:  e.MasteryBefore,
		MasteryAfter:   e.MasteryAfter,
		ReviewedAt:     store.At(e.ReviewedAt),
	}
}
