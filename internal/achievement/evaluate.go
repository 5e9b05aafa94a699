package achievement

import (
	"time"
)

// Outcome is the result of one evaluation pass.
type Outcome struct {
	Stats Statistics
	// Changed holds the user achievements to persist: new ones have
	// Version 0.
	Changed   []UserAchievement
	Unlocked  []Achievement
	XPAwarded int64
}

// Evaluate checks every not-yet-completed candidate against stats. A
// satisfied achievement is completed with Progress 100 and its points are
// added to total, weekly and monthly XP; others have their progress raised.
// Completed achievements are skipped, so evaluating twice awards once.
func Evaluate(stats Statistics, candidates []Achievement, existing []UserAchievement, now time.Time, newID func() string) (Outcome, error) {
	byID := make(map[string]UserAchievement, len(existing))
	for _, ua := range existing {
		byID[ua.AchievementID] = ua
	}

	out := Outcome{Stats: stats}
	for _, a := range candidates {
		ua, found := byID[a.ID]
		if found && ua.IsCompleted {
			continue
		}
		if !found {
			ua = UserAchievement{ID: newID(), UserID: stats.UserID, AchievementID: a.ID}
		}

		ok, err := a.Criteria.Satisfied(stats)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			unlockedAt := now
			ua.IsCompleted = true
			ua.UnlockedAt = &unlockedAt
			ua.Progress = 100
			out.Changed = append(out.Changed, ua)
			out.Unlocked = append(out.Unlocked, a)
			out.XPAwarded += a.Points
			continue
		}

		progress := max(ua.Progress, a.Criteria.Progress(stats))
		if progress != ua.Progress {
			ua.Progress = progress
			out.Changed = append(out.Changed, ua)
		}
	}

	if len(out.Unlocked) > 0 {
		out.Stats = AwardXP(out.Stats, out.XPAwarded, now)
	}
	return out, nil
}

// AwardXP adds points to every XP total, first rolling weekly and monthly XP
// over when the last award was in an earlier ISO week or calendar month.
func AwardXP(stats Statistics, points int64, now time.Time) Statistics {
	stats.WeeklyXP, stats.MonthlyXP = stats.PeriodXP(now)
	stats.TotalXP += points
	stats.WeeklyXP += points
	stats.MonthlyXP += points
	at := now
	stats.LastXPUpdate = &at
	return stats
}
