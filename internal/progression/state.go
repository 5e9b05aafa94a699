package progression

import "time"

// Status is the progression state of a block for one learner. Blocks only
// move forward: locked, not_started, in_progress, completed.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// UserBlockProgress is one learner's state on one block.
type UserBlockProgress struct {
	ID         string
	UserID     string
	LessonID   string
	BlockID    string
	BlockKind  Kind
	BlockOrder int
	Status     Status
	// IsLocked mirrors Status == StatusLocked.
	IsLocked         bool
	Attempts         int
	LastAttemptScore *float64
	TimeSpent        time.Duration
	CompletedAt      *time.Time
	Version          int64
}

// Completion describes the effect of completing a block.
type Completion struct {
	Block UserBlockProgress
	// Unlocked is the successor block opened by this completion, if any.
	Unlocked *UserBlockProgress
	// LessonFinished is set when the completed block was the last one.
	LessonFinished bool
	// AlreadyCompleted is set when the block was completed before; nothing
	// changed.
	AlreadyCompleted bool
}
