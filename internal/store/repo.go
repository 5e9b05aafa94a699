package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	UserID string    // exact match when set
	Type   string    // exact match when set
}

// WordProgressRecord is the persisted form of a learner's word state.
type WordProgressRecord struct {
	ID              string  `db:"id"`
	UserID          string  `db:"user_id"`
	WordID          string  `db:"word_id"`
	MasteryLevel    int     `db:"mastery_level"`
	TimesReviewed   int     `db:"times_reviewed"`
	TimesCorrect    int     `db:"times_correct"`
	TimesIncorrect  int     `db:"times_incorrect"`
	LastReviewedAt  Time    `db:"last_reviewed_at"`
	NextReviewAt    Time    `db:"next_review_at"`
	IntervalDays    int     `db:"interval_days"`
	EaseFactor      float64 `db:"ease_factor"`
	RecentResponses string  `db:"recent_responses"`
	LearnedAt       Time    `db:"learned_at"`
	Version         int64   `db:"version"`
}

// ReviewEventRecord is one entry of the append-only review log.
type ReviewEventRecord struct {
	ID             string  `db:"id"`
	UserID         string  `db:"user_id"`
	WordID         string  `db:"word_id"`
	Response       string  `db:"response"`
	LatencyMs      int64   `db:"latency_ms"`
	Correct        bool    `db:"correct"`
	IntervalBefore int     `db:"interval_before"`
	IntervalAfter  int     `db:"interval_after"`
	EaseBefore     float64 `db:"ease_before"`
	EaseAfter      float64 `db:"ease_after"`
	MasteryBefore  int     `db:"mastery_before"`
	MasteryAfter   int     `db:"mastery_after"`
	ReviewedAt     Time    `db:"reviewed_at"`
}

// BlockProgressRecord is the persisted state of one block for one learner.
type BlockProgressRecord struct {
	ID               string   `db:"id"`
	UserID           string   `db:"user_id"`
	LessonID         string   `db:"lesson_id"`
	BlockID          string   `db:"block_id"`
	BlockKind        string   `db:"block_kind"`
	BlockOrder       int      `db:"block_order"`
	Status           string   `db:"status"`
	IsLocked         bool     `db:"is_locked"`
	Attempts         int      `db:"attempts"`
	LastAttemptScore *float64 `db:"last_attempt_score"`
	TimeSpentSecs    int64    `db:"time_spent_secs"`
	CompletedAt      Time     `db:"completed_at"`
	Version          int64    `db:"version"`
}

// QuizAttemptRecord is the persisted state of a quiz attempt. Answers hold
// the JSON encoded answer list.
type QuizAttemptRecord struct {
	ID                  string  `db:"id"`
	UserID              string  `db:"user_id"`
	QuizID              string  `db:"quiz_id"`
	LessonID            string  `db:"lesson_id"`
	BlockID             string  `db:"block_id"`
	UserBlockProgressID string  `db:"user_block_progress_id"`
	Answers             string  `db:"answers"`
	Score               float64 `db:"score"`
	MaxScore            float64 `db:"max_score"`
	Percentage          float64 `db:"percentage"`
	CorrectAnswers      int     `db:"correct_answers"`
	TotalQuestions      int     `db:"total_questions"`
	PassingThreshold    float64 `db:"passing_threshold"`
	Status              string  `db:"status"`
	StartedAt           Time    `db:"started_at"`
	CompletedAt         Time    `db:"completed_at"`
	Version             int64   `db:"version"`
}

// ExamAttemptRecord is the persisted state of an exam attempt together with
// its sections in position order.
type ExamAttemptRecord struct {
	ID                 string  `db:"id"`
	UserID             string  `db:"user_id"`
	ExamID             string  `db:"exam_id"`
	LessonID           string  `db:"lesson_id"`
	BlockID            string  `db:"block_id"`
	Status             string  `db:"status"`
	TotalScore         float64 `db:"total_score"`
	MaxScore           float64 `db:"max_score"`
	TotalPercentage    float64 `db:"total_percentage"`
	TotalTimeSpentSecs int64   `db:"total_time_spent_secs"`
	PassingThreshold   float64 `db:"passing_threshold"`
	StartedAt          Time    `db:"started_at"`
	CompletedAt        Time    `db:"completed_at"`
	Version            int64   `db:"version"`

	Sections []SectionAttemptRecord `db:"-"`
}

// SectionAttemptRecord is one timed section of an exam attempt.
type SectionAttemptRecord struct {
	ID            string  `db:"id"`
	ExamAttemptID string  `db:"exam_attempt_id"`
	SectionID     string  `db:"section_id"`
	Position      int     `db:"position"`
	Status        string  `db:"status"`
	Answers       string  `db:"answers"`
	Score         float64 `db:"score"`
	MaxScore      float64 `db:"max_score"`
	Percentage    float64 `db:"percentage"`
	TimeSpentSecs int64   `db:"time_spent_secs"`
	TimeLimitSecs int64   `db:"time_limit_secs"`
	OpenedAt      Time    `db:"opened_at"`
	CompletedAt   Time    `db:"completed_at"`
}

// UserAchievementRecord is a learner's progress on one achievement.
type UserAchievementRecord struct {
	ID            string `db:"id"`
	UserID        string `db:"user_id"`
	AchievementID string `db:"achievement_id"`
	Progress      int    `db:"progress"`
	IsCompleted   bool   `db:"is_completed"`
	UnlockedAt    Time   `db:"unlocked_at"`
	Version       int64  `db:"version"`
}

// StatisticsRecord is the per-learner statistics row, keyed by learner id.
type StatisticsRecord struct {
	UserID            string `db:"id"`
	TotalXP           int64  `db:"total_xp"`
	WeeklyXP          int64  `db:"weekly_xp"`
	MonthlyXP         int64  `db:"monthly_xp"`
	LastXPUpdate      Time   `db:"last_xp_update"`
	CurrentStreak     int    `db:"current_streak"`
	LongestStreak     int    `db:"longest_streak"`
	TotalWordsLearned int    `db:"total_words_learned"`
	TotalReviews      int    `db:"total_reviews"`
	QuizzesPassed     int    `db:"quizzes_passed"`
	ExamsPassed       int    `db:"exams_passed"`
	BlocksCompleted   int    `db:"blocks_completed"`
	LessonsCompleted  int    `db:"lessons_completed"`
	LastActivityAt    Time   `db:"last_activity_at"`
	Version           int64  `db:"version"`
}

// DomainEventRecord is one entry of the domain event log.
type DomainEventRecord struct {
	ID        string `db:"id"`
	Sequence  int64  `db:"sequence"`
	Timestamp Time   `db:"timestamp"`
	Type      string `db:"type"`
	UserID    string `db:"user_id"`
	Payload   string `db:"payload"`
}

// Get methods return nil and no error when the row does not exist. Insert
// stores the record with version 1. Update writes only when the stored
// version equals rec.Version and bumps rec.Version on success; otherwise it
// returns an errs.ErrConflict.

// WordProgressRepo manages word review state.
type WordProgressRepo interface {
	Get(ctx context.Context, userID, wordID string) (*WordProgressRecord, error)
	ListByUser(ctx context.Context, userID string) ([]WordProgressRecord, error)
	// ListDue returns words whose next review is unset or not after now.
	ListDue(ctx context.Context, userID string, now time.Time) ([]WordProgressRecord, error)
	Insert(ctx context.Context, rec *WordProgressRecord) error
	Update(ctx context.Context, rec *WordProgressRecord) error
}

// ReviewEventRepo appends and reads the review log.
type ReviewEventRepo interface {
	Append(ctx context.Context, rec *ReviewEventRecord) error
	ListByWord(ctx context.Context, userID, wordID string) ([]ReviewEventRecord, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// BlockProgressRepo manages per-learner block state.
type BlockProgressRepo interface {
	// ListByLesson returns the lesson's records ordered by block order.
	ListByLesson(ctx context.Context, userID, lessonID string) ([]BlockProgressRecord, error)
	Insert(ctx context.Context, rec *BlockProgressRecord) error
	Update(ctx context.Context, rec *BlockProgressRecord) error
}

// QuizAttemptRepo manages quiz attempts.
type QuizAttemptRepo interface {
	Get(ctx context.Context, id string) (*QuizAttemptRecord, error)
	ListByUser(ctx context.Context, userID string) ([]QuizAttemptRecord, error)
	Insert(ctx context.Context, rec *QuizAttemptRecord) error
	Update(ctx context.Context, rec *QuizAttemptRecord) error
}

// ExamAttemptRepo manages exam attempts and their sections as one unit.
type ExamAttemptRepo interface {
	Get(ctx context.Context, id string) (*ExamAttemptRecord, error)
	ListInProgress(ctx context.Context) ([]ExamAttemptRecord, error)
	Insert(ctx context.Context, rec *ExamAttemptRecord) error
	Update(ctx context.Context, rec *ExamAttemptRecord) error
}

// AchievementRepo manages learners' achievement progress.
type AchievementRepo interface {
	ListByUser(ctx context.Context, userID string) ([]UserAchievementRecord, error)
	Insert(ctx context.Context, rec *UserAchievementRecord) error
	Update(ctx context.Context, rec *UserAchievementRecord) error
}

// StatisticsRepo manages the per-learner statistics row.
type StatisticsRepo interface {
	Get(ctx context.Context, userID string) (*StatisticsRecord, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, rec *StatisticsRecord) error
	Update(ctx context.Context, rec *StatisticsRecord) error
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// Append records an event with the next global sequence number.
	// payload is JSON encoded.
	Append(ctx context.Context, eventType, userID string, payload any) (*DomainEventRecord, error)
	QueryEvents(ctx context.Context, opts QueryOpts) ([]DomainEventRecord, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	WordProgress() WordProgressRepo
	ReviewEvents() ReviewEventRepo
	BlockProgress() BlockProgressRepo
	QuizAttempts() QuizAttemptRepo
	ExamAttempts() ExamAttemptRepo
	Achievements() AchievementRepo
	Statistics() StatisticsRepo
	Events() EventRepo
}

// Backend is the persistence surface the domain services depend on.
type Backend interface {
	Repos
	InTx(ctx context.Context, fn func(Repos) error) error
}

var _ Backend = (*Store)(nil)
