package spacedrep

import (
	"math"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

// WordProgress holds the memory-strength state of one learner for one word.
type WordProgress struct {
	ID             string
	UserID         string
	WordID         string
	MasteryLevel   int
	TimesReviewed  int
	TimesCorrect   int
	TimesIncorrect int
	LastReviewedAt *time.Time
	NextReviewAt   *time.Time
	IntervalDays   int
	EaseFactor     float64
	// RecentResponses holds the last responses on this word, oldest first.
	RecentResponses []Response
	// LearnedAt is set the first time MasteryLevel reaches MaxMasteryLevel.
	LearnedAt *time.Time
	Version   int64
}

// NewWordProgress returns the state used for a word that has never been reviewed.
func NewWordProgress(userID, wordID string) WordProgress {
	return WordProgress{
		UserID:       userID,
		WordID:       wordID,
		IntervalDays: InitialIntervalDays,
		EaseFactor:   DefaultEaseFactor,
	}
}

// ReviewEvent is the immutable log entry written for every review.
type ReviewEvent struct {
	ID             string
	UserID         string
	WordID         string
	Response       Response
	Latency        time.Duration
	Correct        bool
	IntervalBefore int
	IntervalAfter  int
	EaseBefore     float64
	EaseAfter      float64
	MasteryBefore  int
	MasteryAfter   int
	ReviewedAt     time.Time
}

// RecordReview applies a review outcome to p and returns the updated progress
// together with the event describing the change. It reads nothing besides its
// arguments. Out-of-range mastery and ease values are clamped.
func RecordReview(p WordProgress, response Response, latency time.Duration, now time.Time) (WordProgress, ReviewEvent, error) {
	if !response.Valid() {
		return p, ReviewEvent{}, errs.InvalidArgument("response", "unknown review response %q", string(response))
	}
	if latency < 0 {
		return p, ReviewEvent{}, errs.InvalidArgument("latency", "must not be negative, got %s", latency)
	}

	next := p
	next.RecentResponses = append([]Response(nil), p.RecentResponses...)
	interval := max(p.IntervalDays, InitialIntervalDays)
	ease := clampEase(p.EaseFactor)
	mastery := clampMastery(p.MasteryLevel)

	switch response {
	case ResponseAgain:
		interval = InitialIntervalDays
		ease = clampEase(ease - againEasePenalty)
		mastery = clampMastery(mastery - 1)
	case ResponseHard:
		interval = ceilDays(float64(interval) * hardIntervalMultiplier)
		ease = clampEase(ease - hardEasePenalty)
	case ResponseGood:
		interval = ceilDays(float64(interval) * ease)
		if !recentlyForgotten(p.RecentResponses) {
			mastery = clampMastery(mastery + 1)
		}
	case ResponseEasy:
		interval = ceilDays(float64(interval) * ease * easyIntervalBonus)
		ease = clampEase(ease + easyEaseBonus)
		mastery = clampMastery(mastery + 1)
	}

	next.IntervalDays = interval
	next.EaseFactor = ease
	next.MasteryLevel = mastery
	next.TimesReviewed++
	if response.Correct() {
		next.TimesCorrect++
	} else {
		next.TimesIncorrect++
	}

	reviewedAt := now
	nextReview := now.AddDate(0, 0, interval)
	next.LastReviewedAt = &reviewedAt
	next.NextReviewAt = &nextReview

	next.RecentResponses = append(next.RecentResponses, response)
	if len(next.RecentResponses) > recentWindow {
		next.RecentResponses = next.RecentResponses[len(next.RecentResponses)-recentWindow:]
	}

	if next.LearnedAt == nil && mastery == MaxMasteryLevel {
		learnedAt := now
		next.LearnedAt = &learnedAt
	}

	event := ReviewEvent{
		UserID:         p.UserID,
		WordID:         p.WordID,
		Response:       response,
		Latency:        latency,
		Correct:        response.Correct(),
		IntervalBefore: p.IntervalDays,
		IntervalAfter:  interval,
		EaseBefore:     p.EaseFactor,
		EaseAfter:      ease,
		MasteryBefore:  p.MasteryLevel,
		MasteryAfter:   mastery,
		ReviewedAt:     now,
	}
	return next, event, nil
}

// recentlyForgotten reports whether any of the last two responses was "again".
func recentlyForgotten(recent []Response) bool {
	start := max(len(recent)-recentWindow, 0)
	for _, r := range recent[start:] {
		if r == ResponseAgain {
			return true
		}
	}
	return false
}

// ceilDays rounds up, ignoring float noise below 1e-9 so that 8*2.5*1.3 is 26.
func ceilDays(days float64) int {
	return max(int(math.Ceil(days-1e-9)), InitialIntervalDays)
}

// clampEase applies the 1.3 floor and rounds to two decimals to keep repeated
// adjustments from drifting.
func clampEase(ease float64) float64 {
	ease = math.Round(ease*100) / 100
	if ease < MinEaseFactor {
		return MinEaseFactor
	}
	return ease
}

func clampMastery(level int) int {
	return min(max(level, 0), MaxMasteryLevel)
}
