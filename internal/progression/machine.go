package progression

import (
	"sort"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

// Initialize builds the progress records for a learner starting a lesson.
// The block at order 0 starts unlocked; every other block starts locked.
// Block orders must be unique and contiguous from 0.
func Initialize(userID string, lesson Lesson, newID func() string) ([]UserBlockProgress, error) {
	if userID == "" {
		return nil, errs.InvalidArgument("user_id", "must not be empty")
	}
	if err := ValidateLesson(lesson); err != nil {
		return nil, err
	}

	blocks := append([]Block(nil), lesson.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })

	out := make([]UserBlockProgress, len(blocks))
	for i, b := range blocks {
		status := StatusLocked
		if b.Order == 0 {
			status = StatusNotStarted
		}
		out[i] = UserBlockProgress{
			ID:         newID(),
			UserID:     userID,
			LessonID:   lesson.ID,
			BlockID:    b.ID,
			BlockKind:  b.Kind,
			BlockOrder: b.Order,
			Status:     status,
			IsLocked:   status == StatusLocked,
		}
	}
	return out, nil
}

// ValidateLesson checks that a lesson has blocks with unique ids and orders
// forming the sequence 0..n-1.
func ValidateLesson(lesson Lesson) error {
	if lesson.ID == "" {
		return errs.InvalidArgument("lesson_id", "must not be empty")
	}
	if len(lesson.Blocks) == 0 {
		return errs.InvalidArgument("blocks", "lesson %s has no blocks", lesson.ID)
	}
	ids := make(map[string]bool, len(lesson.Blocks))
	orders := make(map[int]bool, len(lesson.Blocks))
	for _, b := range lesson.Blocks {
		if b.ID == "" || ids[b.ID] {
			return errs.InvalidArgument("blocks", "lesson %s: missing or duplicate block id %q", lesson.ID, b.ID)
		}
		if b.Order < 0 || b.Order >= len(lesson.Blocks) || orders[b.Order] {
			return errs.InvalidArgument("blocks", "lesson %s: block orders must be unique and contiguous from 0, got %d", lesson.ID, b.Order)
		}
		ids[b.ID] = true
		orders[b.Order] = true
	}
	return nil
}

// RecordAttempt counts an attempt on a block. A first attempt moves the block
// to in_progress; a completed block keeps its status and only updates its
// counters. Locked blocks reject attempts.
func RecordAttempt(bp UserBlockProgress, score float64, timeSpent time.Duration) (UserBlockProgress, error) {
	if score < 0 || score > 100 {
		return bp, errs.InvalidArgument("score", "must be within 0..100, got %v", score)
	}
	if timeSpent < 0 {
		return bp, errs.InvalidArgument("time_spent", "must not be negative, got %s", timeSpent)
	}
	if bp.Status == StatusLocked || bp.IsLocked {
		return bp, errs.PreconditionFailed("block %s is locked", bp.BlockID)
	}

	next := bp
	if next.Status == StatusNotStarted {
		next.Status = StatusInProgress
	}
	next.Attempts++
	s := score
	next.LastAttemptScore = &s
	next.TimeSpent += timeSpent
	return next, nil
}

// CompleteBlock completes blockID within the lesson's records and unlocks its
// successor. It returns the updated records (same order as blocks) and the
// completion. Blocks must be completed in order: a locked block or one whose
// predecessor is not completed fails with PreconditionFailed and nothing
// changes. Completing an already completed block changes nothing.
func CompleteBlock(blocks []UserBlockProgress, blockID string, now time.Time) ([]UserBlockProgress, Completion, error) {
	idx := indexOf(blocks, blockID)
	if idx < 0 {
		return blocks, Completion{}, errs.NotFound("block", blockID)
	}
	target := blocks[idx]

	if target.Status == StatusCompleted {
		return blocks, Completion{Block: target, AlreadyCompleted: true}, nil
	}
	if target.Status == StatusLocked || target.IsLocked {
		return blocks, Completion{}, errs.PreconditionFailed("block %s is locked", blockID)
	}
	if prev := indexOfOrder(blocks, target.BlockOrder-1); prev >= 0 && blocks[prev].Status != StatusCompleted {
		return blocks, Completion{}, errs.PreconditionFailed("block %s requires block %s to be completed first",
			blockID, blocks[prev].BlockID)
	}

	out := append([]UserBlockProgress(nil), blocks...)
	completedAt := now
	out[idx].Status = StatusCompleted
	out[idx].IsLocked = false
	out[idx].CompletedAt = &completedAt

	c := Completion{Block: out[idx]}
	next := indexOfOrder(out, target.BlockOrder+1)
	if next < 0 {
		c.LessonFinished = true
		return out, c, nil
	}
	if out[next].Status == StatusLocked {
		out[next].Status = StatusNotStarted
		out[next].IsLocked = false
		unlocked := out[next]
		c.Unlocked = &unlocked
	}
	return out, c, nil
}

// Current returns the first block that is unlocked and not completed.
func Current(blocks []UserBlockProgress) (UserBlockProgress, bool) {
	best := -1
	for i, b := range blocks {
		if b.Status == StatusNotStarted || b.Status == StatusInProgress {
			if best < 0 || b.BlockOrder < blocks[best].BlockOrder {
				best = i
			}
		}
	}
	if best < 0 {
		return UserBlockProgress{}, false
	}
	return blocks[best], true
}

// Finished reports whether every block is completed.
func Finished(blocks []UserBlockProgress) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, b := range blocks {
		if b.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func indexOf(blocks []UserBlockProgress, blockID string) int {
	for i, b := range blocks {
		if b.BlockID == blockID {
			return i
		}
	}
	return -1
}

func indexOfOrder(blocks []UserBlockProgress, order int) int {
	for i, b := range blocks {
		if b.BlockOrder == order {
			return i
		}
	}
	return -1
}
