package achievement

import (
	"time"
)

// Unit names a statistics counter an achievement can target.
type Unit string

const (
	UnitWordsLearned     Unit = "words_learned"
	UnitReviews          Unit = "reviews"
	UnitStreakDays       Unit = "streak_days"
	UnitLongestStreak    Unit = "longest_streak"
	UnitQuizzesPassed    Unit = "quizzes_passed"
	UnitExamsPassed      Unit = "exams_passed"
	UnitBlocksCompleted  Unit = "blocks_completed"
	UnitLessonsCompleted Unit = "lessons_completed"
)

// Units lists every unit in a stable order.
var Units = []Unit{
	UnitWordsLearned,
	UnitReviews,
	UnitStreakDays,
	UnitLongestStreak,
	UnitQuizzesPassed,
	UnitExamsPassed,
	UnitBlocksCompleted,
	UnitLessonsCompleted,
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// Criteria decides when an achievement unlocks: the unit's counter must
// reach Target and, when set, Expression must evaluate to true. Expression
// is a CEL predicate over the unit names, e.g. "reviews >= 50 && streak_days >= 3".
type Criteria struct {
	Unit       Unit   `json:"unit"`
	Target     int    `json:"target"`
	Expression string `json:"expression,omitempty"`
}

// Achievement is a static achievement definition.
type Achievement struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Points      int64    `json:"points"`
	Criteria    Criteria `json:"criteria"`
}

// UserAchievement is a learner's progress on one achievement. IsCompleted
// never reverts and UnlockedAt is set in the same transition.
type UserAchievement struct {
	ID            string
	UserID        string
	AchievementID string
	Progress      int
	IsCompleted   bool
	UnlockedAt    *time.Time
	Version       int64
}

// Statistics is the per-learner aggregate. The XP fields and LastXPUpdate
// are written only by the Synchronizer.
type Statistics struct {
	UserID            string
	TotalXP           int64
	WeeklyXP          int64
	MonthlyXP         int64
	LastXPUpdate      *time.Time
	CurrentStreak     int
	LongestStreak     int
	TotalWordsLearned int
	TotalReviews      int
	QuizzesPassed     int
	ExamsPassed       int
	BlocksCompleted   int
	LessonsCompleted  int
	LastActivityAt    *time.Time
	Version           int64
}

// Value returns the counter measured by u.
func (s Statistics) Value(u Unit) (int, bool) {
	switch u {
	case UnitWordsLearned:
		return s.TotalWordsLearned, true
	case UnitReviews:
		return s.TotalReviews, true
	case UnitStreakDays:
		return s.CurrentStreak, true
	case UnitLongestStreak:
		return s.LongestStreak, true
	case UnitQuizzesPassed:
		return s.QuizzesPassed, true
	case UnitExamsPassed:
		return s.ExamsPassed, true
	case UnitBlocksCompleted:
		return s.BlocksCompleted, true
	case UnitLessonsCompleted:
		return s.LessonsCompleted, true
	}
	return 0, false
}

// values maps every unit to its counter.
func (s Statistics) values() map[string]any {
	out := make(map[string]any, len(Units))
	for _, u := range Units {
		v, _ := s.Value(u)
		out[string(u)] = int64(v)
	}
	return out
}

// TouchActivity records learner activity at now and maintains the daily
// streak: activity on the day after the last active day extends it, a gap
// resets it to one. Days are UTC calendar days.
func (s *Statistics) TouchActivity(now time.Time) {
	today := day(now)
	switch {
	case s.LastActivityAt == nil:
		s.CurrentStreak = 1
	case day(*s.LastActivityAt).Equal(today):
		if s.CurrentStreak == 0 {
			s.CurrentStreak = 1
		}
	case day(*s.LastActivityAt).AddDate(0, 0, 1).Equal(today):
		s.CurrentStreak++
	case today.Before(day(*s.LastActivityAt)):
		// Out-of-order timestamp; leave the streak alone.
		return
	default:
		s.CurrentStreak = 1
	}
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	at := now
	s.LastActivityAt = &at
}

// PeriodXP returns weekly and monthly XP as of now, treating totals from an
// earlier ISO week or calendar month as zero.
func (s Statistics) PeriodXP(now time.Time) (weekly, monthly int64) {
	if s.LastXPUpdate == nil {
		return 0, 0
	}
	weekly, monthly = s.WeeklyXP, s.MonthlyXP
	if !sameISOWeek(*s.LastXPUpdate, now) {
		weekly = 0
	}
	if !sameMonth(*s.LastXPUpdate, now) {
		monthly = 0
	}
	return weekly, monthly
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameISOWeek(a, b time.Time) bool {
	ay, aw := a.UTC().ISOWeek()
	by, bw := b.UTC().ISOWeek()
	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}
