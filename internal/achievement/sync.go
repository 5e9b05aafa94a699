package achievement

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

// EventAchievementUnlocked is emitted once per unlocked achievement.
const EventAchievementUnlocked = "achievement_unlocked"

// Definitions lists the achievement catalog.
type Definitions interface {
	Achievements() []Achievement
}

// ResyncResult reports what ResyncXP did for one learner.
type ResyncResult struct {
	UserID   string
	Sum      int64
	Previous int64
	Written  bool
}

// Synchronizer owns learner statistics and keeps achievement unlocks and XP
// in step. All writes for one learner are serialized.
type Synchronizer struct {
	backend store.Backend
	defs    Definitions
	locks   *keylock.Map
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewSynchronizer(backend store.Backend, defs Definitions, locks *keylock.Map, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{
		backend: backend,
		defs:    defs,
		locks:   locks,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Synchronizer) SetClock(now func() time.Time) {
	s.now = now
}

func statsKey(userID string) string { return keylock.Key("statistics", userID) }

// Statistics returns the learner's statistics. Learners with no activity get
// a zero value.
func (s *Synchronizer) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	st, _, err := loadStats(ctx, s.backend, userID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Achievements returns the learner's achievement progress.
func (s *Synchronizer) Achievements(ctx context.Context, userID string) ([]UserAchievement, error) {
	recs, err := s.backend.Achievements().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return lo.Map(recs, func(r store.UserAchievementRecord, _ int) UserAchievement { return fromRecord(r) }), nil
}

// UpdateCounters applies fn to the learner's activity counters and stores
// the result. Changes fn makes to the XP fields are discarded.
func (s *Synchronizer) UpdateCounters(ctx context.Context, userID string, fn func(*Statistics)) (*Statistics, error) {
	if userID == "" {
		return nil, errs.InvalidArgument("user_id", "must not be empty")
	}
	unlock := s.locks.Lock(statsKey(userID))
	defer unlock()

	var out Statistics
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			st, exists, err := loadStats(ctx, r, userID)
			if err != nil {
				return err
			}
			next := st
			fn(&next)
			next.TotalXP, next.WeeklyXP, next.MonthlyXP = st.TotalXP, st.WeeklyXP, st.MonthlyXP
			next.LastXPUpdate = st.LastXPUpdate
			if err := saveStats(ctx, r, &next, exists); err != nil {
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

// Evaluate unlocks every achievement the learner's statistics now satisfy
// and awards its points in the same transaction. Calling it again without
// new activity changes nothing.
func (s *Synchronizer) Evaluate(ctx context.Context, userID string) (*Outcome, error) {
	if userID == "" {
		return nil, errs.InvalidArgument("user_id", "must not be empty")
	}
	unlock := s.locks.Lock(statsKey(userID))
	defer unlock()

	var out Outcome
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		return s.backend.InTx(ctx, func(r store.Repos) error {
			st, exists, err := loadStats(ctx, r, userID)
			if err != nil {
				return err
			}
			recs, err := r.Achievements().ListByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("list achievements: %w", err)
			}
			existing := lo.Map(recs, func(rec store.UserAchievementRecord, _ int) UserAchievement { return fromRecord(rec) })

			now := s.now()
			res, err := Evaluate(st, s.defs.Achievements(), existing, now, uuid.NewString)
			if err != nil {
				return err
			}

			for i := range res.Changed {
				ua := &res.Changed[i]
				rec := toRecord(*ua)
				if ua.Version == 0 {
					err = r.Achievements().Insert(ctx, rec)
				} else {
					err = r.Achievements().Update(ctx, rec)
				}
				if err != nil {
					return fmt.Errorf("save achievement %s: %w", ua.AchievementID, err)
				}
				ua.Version = rec.Version
			}
			if len(res.Unlocked) > 0 {
				if err := saveStats(ctx, r, &res.Stats, exists); err != nil {
					return err
				}
			}
			for _, a := range res.Unlocked {
				payload := map[string]any{"achievement_id": a.ID, "points": a.Points}
				if _, err := r.Events().Append(ctx, EventAchievementUnlocked, userID, payload); err != nil {
					return err
				}
			}
			out = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, a := range out.Unlocked {
		s.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"achievement_id": a.ID,
			"points":         a.Points,
			"total_xp":       out.Stats.TotalXP,
		}).Info("achievement unlocked")
	}
	return &out, nil
}

// ResyncXP recomputes each learner's XP from completed achievements. The sum
// is written only when TotalXP is zero; a differing non-zero total is left
// as is and logged. With no ids every learner with statistics is resynced.
func (s *Synchronizer) ResyncXP(ctx context.Context, userIDs ...string) ([]ResyncResult, error) {
	if len(userIDs) == 0 {
		ids, err := s.backend.Statistics().ListUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		userIDs = ids
	}
	points := lo.Associate(s.defs.Achievements(), func(a Achievement) (string, int64) { return a.ID, a.Points })

	results := make([]ResyncResult, 0, len(userIDs))
	for _, userID := range userIDs {
		res, err := s.resyncOne(ctx, userID, points)
		if err != nil {
			return results, fmt.Errorf("resync %s: %w", userID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Synchronizer) resyncOne(ctx context.Context, userID string, points map[string]int64) (ResyncResult, error) {
	unlock := s.locks.Lock(statsKey(userID))
	defer unlock()

	res := ResyncResult{UserID: userID}
	err := errs.RetryConflict(ctx, func(ctx context.Context) error {
		res = ResyncResult{UserID: userID}
		return s.backend.InTx(ctx, func(r store.Repos) error {
			st, exists, err := loadStats(ctx, r, userID)
			if err != nil {
				return err
			}
			recs, err := r.Achievements().ListByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("list achievements: %w", err)
			}
			for _, rec := range recs {
				if !rec.IsCompleted {
					continue
				}
				p, ok := points[rec.AchievementID]
				if !ok {
					s.log.WithFields(logrus.Fields{"user_id": userID, "achievement_id": rec.AchievementID}).
						Warn("completed achievement missing from catalog")
					continue
				}
				res.Sum += p
			}
			res.Previous = st.TotalXP

			if st.TotalXP != 0 || res.Sum == 0 {
				return nil
			}
			st.TotalXP = res.Sum
			now := s.now()
			st.LastXPUpdate = &now
			if err := saveStats(ctx, r, &st, exists); err != nil {
				return err
			}
			res.Written = true
			return nil
		})
	})
	if err != nil {
		return res, err
	}

	fields := logrus.Fields{"user_id": userID, "sum": res.Sum, "total_xp": res.Previous}
	switch {
	case res.Written:
		s.log.WithFields(fields).Info("xp resynced")
	case res.Previous != res.Sum:
		s.log.WithFields(fields).Warn("xp differs from achievement sum; keeping existing total")
	}
	return res, nil
}

func loadStats(ctx context.Context, r store.Repos, userID string) (Statistics, bool, error) {
	rec, err := r.Statistics().Get(ctx, userID)
	if err != nil {
		return Statistics{}, false, fmt.Errorf("load statistics: %w", err)
	}
	if rec == nil {
		return Statistics{UserID: userID}, false, nil
	}
	return statsFromRecord(*rec), true, nil
}

func saveStats(ctx context.Context, r store.Repos, st *Statistics, exists bool) error {
	rec := statsToRecord(*st)
	var err error
	if exists {
		err = r.Statistics().Update(ctx, rec)
	} else {
		err = r.Statistics().Insert(ctx, rec)
	}
	if err != nil {
		return fmt.Errorf("save statistics: %w", err)
	}
	st.Version = rec.Version
	return nil
}

func fromRecord(rec store.UserAchievementRecord) UserAchievement {
	return UserAchievement{
		ID:            rec.ID,
		UserID:        rec.UserID,
		AchievementID: rec.AchievementID,
		Progress:      rec.Progress,
		IsCompleted:   rec.IsCompleted,
		UnlockedAt:    rec.UnlockedAt.Ptr(),
		Version:       rec.Version,
	}
}

func toRecord(ua UserAchievement) *store.UserAchievementRecord {
	return &store.UserAchievementRecord{
		ID:            ua.ID,
		UserID:        ua.UserID,
		AchievementID: ua.AchievementID,
		Progress:      ua.Progress,
		IsCompleted:   ua.IsCompleted,
		UnlockedAt:    store.TimeOf(ua.UnlockedAt),
		Version:       ua.Version,
	}
}

func statsFromRecord(rec store.StatisticsRecord) Statistics {
	return Statistics{
		UserID:            rec.UserID,
		TotalXP:           rec.TotalXP,
		WeeklyXP:          rec.WeeklyXP,
		MonthlyXP:         rec.MonthlyXP,
		LastXPUpdate:      rec.LastXPUpdate.Ptr(),
		CurrentStreak:     rec.CurrentStreak,
		LongestStreak:     rec.LongestStreak,
		TotalWordsLearned: rec.TotalWordsLearned,
		TotalReviews:      rec.TotalReviews,
		QuizzesPassed:     rec.QuizzesPassed,
		ExamsPassed:       rec.ExamsPassed,
		BlocksCompleted:   rec.BlocksCompleted,
		LessonsCompleted:  rec.LessonsCompleted,
		LastActivityAt:    rec.LastActivityAt.Ptr(),
		Version:           rec.Version,
	}
}

func statsToRecord(st Statistics) *store.StatisticsRecord {
	return &store.StatisticsRecord{
		UserID:            st.UserID,
		TotalXP:           st.TotalXP,
		WeeklyXP:          st.WeeklyXP,
		MonthlyXP:         st.MonthlyXP,
		LastXPUpdate:      store.TimeOf(st.LastXPUpdate),
		CurrentStreak:     st.CurrentStreak,
		LongestStreak:     st.LongestStreak,
		TotalWordsLearned: st.TotalWordsLearned,
		TotalReviews:      st.TotalReviews,
		QuizzesPassed:     st.QuizzesPassed,
		ExamsPassed:       st.ExamsPassed,
		BlocksCompleted:   st.BlocksCompleted,
		LessonsCompleted:  st.LessonsCompleted,
		LastActivityAt:    store.TimeOf(st.LastActivityAt),
		Version:           st.Version,
	}
}
