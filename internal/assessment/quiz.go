package assessment

import (
	"math"
	"strings"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

// Status is the lifecycle state of a quiz or exam attempt.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Quiz is a static quiz definition.
type Quiz struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// PassingThreshold is the minimum percentage (0..100) to pass.
	PassingThreshold float64    `json:"passing_threshold"`
	Questions        []Question `json:"questions"`
}

// MaxScore returns the sum of the question points.
func (q Quiz) MaxScore() float64 {
	return maxScore(q.Questions)
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	return findQuestion(q.Questions, id)
}

// BlockRef ties an attempt to the lesson block it was started from. All
// fields are optional.
type BlockRef struct {
	LessonID            string
	BlockID             string
	UserBlockProgressID string
}

// Answer is a judged response to one question.
type Answer struct {
	QuestionID string    `json:"question_id"`
	Response   string    `json:"response"`
	Correct    bool      `json:"correct"`
	Points     float64   `json:"points"`
	AnsweredAt time.Time `json:"answered_at"`
}

// BlockCompletion is emitted when a passed attempt completes the block it
// was started from.
type BlockCompletion struct {
	UserID     string
	LessonID   string
	BlockID    string
	AttemptID  string
	Percentage float64
	TimeSpent  time.Duration
}

// QuizAttempt is one learner's attempt at a quiz.
type QuizAttempt struct {
	ID     string
	UserID string
	QuizID string
	Origin BlockRef
	// Answers are kept in submission order.
	Answers          []Answer
	Score            float64
	MaxScore         float64
	Percentage       float64
	CorrectAnswers   int
	TotalQuestions   int
	PassingThreshold float64
	Status           Status
	StartedAt        time.Time
	CompletedAt      *time.Time
	Version          int64
}

// IsPassed reports whether a completed attempt reached the passing threshold.
// The decision uses the exact score ratio, not the rounded Percentage.
func (a QuizAttempt) IsPassed() bool {
	return a.Status == StatusCompleted && reaches(a.Score, a.MaxScore, a.PassingThreshold)
}

// StartQuiz opens a new attempt.
func StartQuiz(id, userID string, quiz Quiz, origin BlockRef, now time.Time) (QuizAttempt, error) {
	if userID == "" {
		return QuizAttempt{}, errs.InvalidArgument("user_id", "must not be empty")
	}
	if len(quiz.Questions) == 0 {
		return QuizAttempt{}, errs.InvalidArgument("quiz", "quiz %s has no questions", quiz.ID)
	}
	return QuizAttempt{
		ID:               id,
		UserID:           userID,
		QuizID:           quiz.ID,
		Origin:           origin,
		MaxScore:         quiz.MaxScore(),
		TotalQuestions:   len(quiz.Questions),
		PassingThreshold: quiz.PassingThreshold,
		Status:           StatusInProgress,
		StartedAt:        now,
	}, nil
}

// SubmitAnswer judges a response and appends it to the attempt. Each
// question can be answered once.
func SubmitAnswer(a QuizAttempt, quiz Quiz, questionID, response string, now time.Time) (QuizAttempt, Answer, error) {
	if a.Status != StatusInProgress {
		return a, Answer{}, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	q, ok := quiz.Question(questionID)
	if !ok {
		return a, Answer{}, errs.NotFound("question", questionID)
	}
	if strings.TrimSpace(response) == "" {
		return a, Answer{}, errs.InvalidArgument("response", "must not be empty")
	}
	for _, prev := range a.Answers {
		if prev.QuestionID == questionID {
			return a, Answer{}, errs.PreconditionFailed("question %s already answered", questionID)
		}
	}

	ans := judge(q, response, now)
	next := a
	next.Answers = append(append([]Answer(nil), a.Answers...), ans)
	if ans.Correct {
		next.CorrectAnswers++
	}
	next.Score += ans.Points
	return next, ans, nil
}

// CompleteQuiz scores the attempt. A passed attempt with an originating
// block yields a BlockCompletion.
func CompleteQuiz(a QuizAttempt, now time.Time) (QuizAttempt, *BlockCompletion, error) {
	if a.Status != StatusInProgress {
		return a, nil, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	next := a
	next.Percentage = percentage(a.Score, a.MaxScore)
	next.Status = StatusCompleted
	completedAt := now
	next.CompletedAt = &completedAt

	if !next.IsPassed() || next.Origin.BlockID == "" {
		return next, nil, nil
	}
	return next, &BlockCompletion{
		UserID:     next.UserID,
		LessonID:   next.Origin.LessonID,
		BlockID:    next.Origin.BlockID,
		AttemptID:  next.ID,
		Percentage: next.Percentage,
		TimeSpent:  now.Sub(next.StartedAt),
	}, nil
}

// AbandonQuiz cancels an in-progress attempt. Abandoned attempts never
// complete.
func AbandonQuiz(a QuizAttempt, now time.Time) (QuizAttempt, error) {
	if a.Status != StatusInProgress {
		return a, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	next := a
	next.Status = StatusAbandoned
	completedAt := now
	next.CompletedAt = &completedAt
	return next, nil
}

func judge(q Question, response string, now time.Time) Answer {
	ans := Answer{QuestionID: q.ID, Response: response, AnsweredAt: now}
	if CheckAnswer(response, q) {
		ans.Correct = true
		ans.Points = q.MaxPoints()
	}
	return ans
}

func findQuestion(qs []Question, id string) (Question, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func maxScore(qs []Question) float64 {
	var total float64
	for _, q := range qs {
		total += q.MaxPoints()
	}
	return total
}

// reaches reports whether score/total*100 >= threshold without rounding.
func reaches(score, total, threshold float64) bool {
	if total <= 0 {
		return threshold <= 0
	}
	return score*100 >= threshold*total
}

// percentage returns score/max*100 rounded to two decimals for display.
func percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(score*100/total*100) / 100
}
