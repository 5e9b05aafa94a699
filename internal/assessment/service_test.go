package assessment

import (
	"context"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/store"
)

type defs struct {
	quizzes map[string]Quiz
	exams   map[string]Exam
}

func (d defs) Quiz(id string) (Quiz, bool) {
	q, ok := d.quizzes[id]
	return q, ok
}

func (d defs) Exam(id string) (Exam, bool) {
	e, ok := d.exams[id]
	return e, ok
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	st, err := store.Open(context.Background(), store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	d := defs{
		quizzes: map[string]Quiz{"quiz-1": tenQuestionQuiz(70)},
		exams:   map[string]Exam{"exam-1": testExam()},
	}
	svc := NewService(st, d, keylock.New(), log)
	now := t0
	svc.SetClock(func() time.Time { return now })
	return svc, &now
}

func TestServiceQuiz_RoundTrip(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()

	a, err := svc.StartQuiz(ctx, "u1", "quiz-1", BlockRef{LessonID: "l1", BlockID: "b3"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)

	_, ans, err := svc.SubmitAnswer(ctx, a.ID, "q1", "1")
	require.NoError(t, err)
	assert.True(t, ans.Correct)
	_, _, err = svc.SubmitAnswer(ctx, a.ID, "q1", "1")
	assert.True(t, errs.IsPreconditionFailed(err))

	for _, q := range []string{"q2", "q3", "q4", "q5", "q6", "q7"} {
		_, _, err := svc.SubmitAnswer(ctx, a.ID, q, q[1:])
		require.NoError(t, err)
	}

	*now = t0.Add(3 * time.Minute)
	done, completion, err := svc.CompleteQuiz(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, done.IsPassed())
	require.NotNil(t, completion)
	assert.Equal(t, "b3", completion.BlockID)
	assert.Equal(t, 3*time.Minute, completion.TimeSpent)

	loaded, err := svc.QuizAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, 70.0, loaded.Percentage)
	assert.Len(t, loaded.Answers, 7)
	assert.Equal(t, "l1", loaded.Origin.LessonID)
	require.NotNil(t, loaded.CompletedAt)
	assert.True(t, loaded.CompletedAt.Equal(*now))

	_, err = svc.AbandonQuiz(ctx, a.ID)
	assert.True(t, errs.IsPreconditionFailed(err))
}

func TestServiceQuiz_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StartQuiz(ctx, "u1", "nope", BlockRef{})
	assert.True(t, errs.IsNotFound(err))
	_, _, err = svc.SubmitAnswer(ctx, "missing", "q1", "1")
	assert.True(t, errs.IsNotFound(err))
}

func TestServiceQuiz_ConcurrentAnswersApplyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.StartQuiz(ctx, "u1", "quiz-1", BlockRef{})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.SubmitAnswer(ctx, a.ID, "q4", "4"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)

	loaded, err := svc.QuizAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, loaded.Score)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestServiceExam_ExpireAndComplete(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()

	a, err := svc.StartExam(ctx, "u1", "exam-1", BlockRef{LessonID: "l1", BlockID: "final"})
	require.NoError(t, err)
	require.Len(t, a.Sections, 2)

	_, err = svc.SaveSectionAnswers(ctx, a.ID, "reading", map[string]string{"r1": "casa", "r2": "perro"})
	require.NoError(t, err)

	*now = t0.Add(11 * time.Minute)
	overdue, err := svc.OverdueExamAttempts(ctx, *now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, a.ID, overdue[0].ID)

	expiredAttempt, expired, err := svc.ExpireSections(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"reading"}, expired)
	assert.Equal(t, 4.0, expiredAttempt.Sections[0].Score)

	overdue, err = svc.OverdueExamAttempts(ctx, *now)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	_, _, err = svc.SubmitSection(ctx, a.ID, "reading", nil, 0)
	assert.True(t, errs.IsPreconditionFailed(err))

	*now = t0.Add(13 * time.Minute)
	_, more, err := svc.SubmitSection(ctx, a.ID, "listening", map[string]string{"l1": "no"}, 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, more)

	done, completion, err := svc.CompleteExam(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, done.TotalScore)
	assert.Equal(t, 12*time.Minute, done.TotalTimeSpent)
	assert.True(t, done.IsPassed())
	require.NotNil(t, completion)

	loaded, err := svc.ExamAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, loaded.Sections[0].Score+loaded.Sections[1].Score, loaded.TotalScore)
	assert.Equal(t, SectionCompleted, loaded.Sections[1].Status)
}

func TestServiceExam_Abandon(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.StartExam(ctx, "u1", "exam-1", BlockRef{})
	require.NoError(t, err)
	_, err = svc.AbandonExam(ctx, a.ID)
	require.NoError(t, err)

	_, _, err = svc.CompleteExam(ctx, a.ID)
	assert.True(t, errs.IsPreconditionFailed(err))

	loaded, err := svc.ExamAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, loaded.Status)
	assert.False(t, loaded.IsPassed())
}
