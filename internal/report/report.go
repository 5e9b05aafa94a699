// Package report exports a learner's progress as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/progression"
	"github.com/abhisek/lingva/internal/spacedrep"
)

// Sheet names.
const (
	SheetSummary      = "Summary"
	SheetWords        = "Words"
	SheetBlocks       = "Blocks"
	SheetAchievements = "Achievements"
)

// Data is everything a report shows for one learner.
type Data struct {
	UserID       string
	GeneratedAt  time.Time
	Stats        achievement.Statistics
	Words        []spacedrep.WordProgress
	Blocks       []progression.UserBlockProgress
	Achievements []achievement.UserAchievement
	// Names maps achievement ids to display names.
	Names map[string]string
}

// Write renders d as an xlsx workbook to w.
func Write(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetSummary)
	for _, name := range []string{SheetWords, SheetBlocks, SheetAchievements} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	weekly, monthly := d.Stats.PeriodXP(d.GeneratedAt)
	summary := [][]any{
		{"Learner", d.UserID},
		{"Generated", d.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total XP", d.Stats.TotalXP},
		{"Weekly XP", weekly},
		{"Monthly XP", monthly},
		{"Current streak", d.Stats.CurrentStreak},
		{"Longest streak", d.Stats.LongestStreak},
		{"Reviews", d.Stats.TotalReviews},
		{"Words learned", d.Stats.TotalWordsLearned},
		{"Quizzes passed", d.Stats.QuizzesPassed},
		{"Exams passed", d.Stats.ExamsPassed},
		{"Blocks completed", d.Stats.BlocksCompleted},
		{"Lessons completed", d.Stats.LessonsCompleted},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	words := [][]any{{"Word", "Mastery", "Interval (days)", "Ease", "Reviews", "Accuracy", "Next review", "Status"}}
	for i := range d.Words {
		p := &d.Words[i]
		words = append(words, []any{
			p.WordID,
			p.MasteryLevel,
			p.IntervalDays,
			p.EaseFactor,
			p.TimesReviewed,
			p.Accuracy(),
			formatTime(p.NextReviewAt),
			string(p.Status(d.GeneratedAt)),
		})
	}
	if err := writeRows(f, SheetWords, words); err != nil {
		return err
	}

	blocks := [][]any{{"Lesson", "Block", "Kind", "Order", "Status", "Attempts", "Last score", "Time spent (s)", "Completed"}}
	for _, b := range d.Blocks {
		var score any
		if b.LastAttemptScore != nil {
			score = *b.LastAttemptScore
		}
		blocks = append(blocks, []any{
			b.LessonID, b.BlockID, string(b.BlockKind), b.BlockOrder, string(b.Status),
			b.Attempts, score, int64(b.TimeSpent / time.Second), formatTime(b.CompletedAt),
		})
	}
	if err := writeRows(f, SheetBlocks, blocks); err != nil {
		return err
	}

	achievements := [][]any{{"Achievement", "Name", "Progress", "Completed", "Unlocked"}}
	for _, ua := range d.Achievements {
		achievements = append(achievements, []any{
			ua.AchievementID, d.Names[ua.AchievementID], ua.Progress, ua.IsCompleted, formatTime(ua.UnlockedAt),
		})
	}
	if err := writeRows(f, SheetAchievements, achievements); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
