package spacedrep

import (
	"sort"
	"time"
)

// ReviewStatus describes a word's review status for display.
type ReviewStatus string

const (
	ReviewNew     ReviewStatus = "new"
	ReviewNotDue  ReviewStatus = "not_due"
	ReviewDue     ReviewStatus = "due"
	ReviewOverdue ReviewStatus = "overdue"
)

// IsDue returns true if the word is due for review (at or past the review date).
// A word without a scheduled review is always due.
func (p *WordProgress) IsDue(now time.Time) bool {
	if p.NextReviewAt == nil {
		return true
	}
	return !now.Before(*p.NextReviewAt)
}

// OverdueDays returns how many days past due the word is. Returns 0 if not yet due.
func (p *WordProgress) OverdueDays(now time.Time) float64 {
	if p.NextReviewAt == nil || now.Before(*p.NextReviewAt) {
		return 0
	}
	return now.Sub(*p.NextReviewAt).Hours() / 24.0
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due.
func (p *WordProgress) DaysUntilReview(now time.Time) int {
	if p.IsDue(now) {
		return 0
	}
	return int(p.NextReviewAt.Sub(now).Hours()/24.0) + 1
}

// Status returns the review status. A due word becomes overdue once it is
// late by more than half of its current interval.
func (p *WordProgress) Status(now time.Time) ReviewStatus {
	if p.NextReviewAt == nil {
		return ReviewNew
	}
	if !p.IsDue(now) {
		return ReviewNotDue
	}
	grace := float64(max(p.IntervalDays, InitialIntervalDays)) * overdueGraceFactor
	if p.OverdueDays(now) > grace {
		return ReviewOverdue
	}
	return ReviewDue
}

// Accuracy returns the share of correct reviews.
func (p *WordProgress) Accuracy() float64 {
	if p.TimesReviewed == 0 {
		return 0
	}
	return float64(p.TimesCorrect) / float64(p.TimesReviewed)
}

// DueWords returns the words due at now, most overdue first, then hardest
// (lowest ease) first, then by word id. A limit <= 0 returns all of them.
func DueWords(progress []WordProgress, now time.Time, limit int) []WordProgress {
	var due []WordProgress
	for _, p := range progress {
		if p.IsDue(now) {
			due = append(due, p)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		oi, oj := due[i].OverdueDays(now), due[j].OverdueDays(now)
		if oi != oj {
			return oi > oj
		}
		if due[i].EaseFactor != due[j].EaseFactor {
			return due[i].EaseFactor < due[j].EaseFactor
		}
		return due[i].WordID < due[j].WordID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}
