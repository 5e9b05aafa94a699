package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/progression"
)

// QuizOutcome is a completed quiz attempt and the block it completed, if any.
type QuizOutcome struct {
	Attempt *assessment.QuizAttempt
	Block   *progression.Completion
}

// ExamOutcome is a completed exam attempt and the block it completed, if any.
type ExamOutcome struct {
	Attempt *assessment.ExamAttempt
	Block   *progression.Completion
}

// StartBlockQuiz opens an attempt at the quiz of a lesson block. The block
// must be unlocked.
func (c *Coordinator) StartBlockQuiz(ctx context.Context, userID, lessonID, blockID string) (*assessment.QuizAttempt, error) {
	b, ref, err := c.blockRef(ctx, userID, lessonID, blockID)
	if err != nil {
		return nil, err
	}
	p, ok := b.Payload.(*progression.QuizPayload)
	if !ok {
		return nil, errs.InvalidArgument("block_id", "block %s is a %s block", blockID, b.Kind)
	}
	return c.attempts.StartQuiz(ctx, userID, p.QuizID, ref)
}

// StartBlockExam opens an attempt at the exam of a lesson block. The block
// must be unlocked.
func (c *Coordinator) StartBlockExam(ctx context.Context, userID, lessonID, blockID string) (*assessment.ExamAttempt, error) {
	b, ref, err := c.blockRef(ctx, userID, lessonID, blockID)
	if err != nil {
		return nil, err
	}
	p, ok := b.Payload.(*progression.ExamPayload)
	if !ok {
		return nil, errs.InvalidArgument("block_id", "block %s is a %s block", blockID, b.Kind)
	}
	return c.attempts.StartExam(ctx, userID, p.ExamID, ref)
}

func (c *Coordinator) blockRef(ctx context.Context, userID, lessonID, blockID string) (progression.Block, assessment.BlockRef, error) {
	b, err := c.block(lessonID, blockID)
	if err != nil {
		return b, assessment.BlockRef{}, err
	}
	progress, err := c.blocks.Lesson(ctx, userID, lessonID)
	if err != nil {
		return b, assessment.BlockRef{}, err
	}
	for _, bp := range progress {
		if bp.BlockID != blockID {
			continue
		}
		if bp.IsLocked {
			return b, assessment.BlockRef{}, errs.PreconditionFailed("block %s is locked", blockID)
		}
		return b, assessment.BlockRef{LessonID: lessonID, BlockID: blockID, UserBlockProgressID: bp.ID}, nil
	}
	return b, assessment.BlockRef{}, errs.NotFound("block_progress", blockID)
}

// CompleteQuiz scores a quiz attempt, records it on its block, completes the
// block when passed and updates statistics and achievements. When the block
// step fails the returned outcome still holds the completed attempt.
func (c *Coordinator) CompleteQuiz(ctx context.Context, attemptID string) (*QuizOutcome, error) {
	a, signal, err := c.attempts.CompleteQuiz(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	out := &QuizOutcome{Attempt: a}

	var timeSpent time.Duration
	if a.CompletedAt != nil {
		timeSpent = a.CompletedAt.Sub(a.StartedAt)
	}
	out.Block, err = c.applyToBlock(ctx, a.UserID, a.Origin, a.Percentage, timeSpent, signal)
	if err != nil {
		return out, err
	}

	passed := a.IsPassed()
	err = c.afterActivity(ctx, a.UserID, completions(out.Block), func(st *achievement.Statistics) {
		if passed {
			st.QuizzesPassed++
		}
	})
	return out, err
}

// CompleteExam completes an exam attempt whose sections are all submitted and
// follows it through the block, statistics and achievements.
func (c *Coordinator) CompleteExam(ctx context.Context, attemptID string) (*ExamOutcome, error) {
	a, signal, err := c.attempts.CompleteExam(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	out := &ExamOutcome{Attempt: a}

	out.Block, err = c.applyToBlock(ctx, a.UserID, a.Origin, a.TotalPercentage, a.TotalTimeSpent, signal)
	if err != nil {
		return out, err
	}

	passed := a.IsPassed()
	err = c.afterActivity(ctx, a.UserID, completions(out.Block), func(st *achievement.Statistics) {
		if passed {
			st.ExamsPassed++
		}
	})
	return out, err
}

// applyToBlock records the attempt on its originating block and completes
// the block when signal is set. The attempt is already stored when this
// runs, so a block error leaves a completed attempt with no block effect.
func (c *Coordinator) applyToBlock(ctx context.Context, userID string, origin assessment.BlockRef, pct float64, timeSpent time.Duration, signal *assessment.BlockCompletion) (*progression.Completion, error) {
	if origin.LessonID == "" || origin.BlockID == "" {
		return nil, nil
	}
	fields := logrus.Fields{"user_id": userID, "lesson_id": origin.LessonID, "block_id": origin.BlockID}

	if _, err := c.blocks.RecordAttempt(ctx, userID, origin.LessonID, origin.BlockID, pct, timeSpent); err != nil {
		c.log.WithFields(fields).WithError(err).Warn("attempt not recorded on block")
		return nil, fmt.Errorf("record attempt on block %s: %w", origin.BlockID, err)
	}
	if signal == nil {
		return nil, nil
	}
	completion, err := c.blocks.CompleteBlock(ctx, userID, origin.LessonID, origin.BlockID)
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("passing attempt did not complete block")
		return nil, fmt.Errorf("complete block %s: %w", origin.BlockID, err)
	}
	return completion, nil
}

func completions(c *progression.Completion) []progression.Completion {
	if c == nil {
		return nil
	}
	return []progression.Completion{*c}
}

// ExpireOverdue force-submits every exam section whose deadline has passed
// and completes attempts left with no open sections. It returns the number
// of attempts it touched.
func (c *Coordinator) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := c.attempts.OverdueExamAttempts(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("list overdue attempts: %w", err)
	}

	var failures []error
	for _, a := range overdue {
		expired, _, err := c.attempts.ExpireSections(ctx, a.ID)
		if err != nil {
			failures = append(failures, fmt.Errorf("expire %s: %w", a.ID, err))
			continue
		}
		if !expired.AllSectionsCompleted() {
			continue
		}
		if _, err := c.CompleteExam(ctx, a.ID); err != nil {
			failures = append(failures, fmt.Errorf("complete %s: %w", a.ID, err))
		}
	}
	return len(overdue), errors.Join(failures...)
}
