package progression

import (
	"context"
	"io"
	"regexp"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/store"
)

type lessonMap map[string]Lesson

func (m lessonMap) Lesson(id string) (Lesson, bool) {
	l, ok := m[id]
	return l, ok
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func vocabLesson() Lesson {
	return Lesson{ID: "spanish-1", Blocks: []Block{
		{ID: "words-1", Order: 0, Kind: KindVocabulary, Payload: &VocabularyPayload{WordIDs: []string{"casa", "perro"}}},
		{ID: "words-2", Order: 1, Kind: KindVocabulary, Payload: &VocabularyPayload{WordIDs: []string{"sol"}, RequiredMastery: 2}},
		{ID: "quiz", Order: 2, Kind: KindQuiz, Payload: &QuizPayload{QuizID: "q1"}},
	}}
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	st, err := store.Open(context.Background(), store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	lessons := lessonMap{"l1": testLesson(3), "spanish-1": vocabLesson()}
	return NewService(st, lessons, keylock.New(), log), st
}

func TestServiceStartLesson_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.StartLesson(ctx, "u1", "l1")
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := svc.StartLesson(ctx, "u1", "l1")
	require.NoError(t, err)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	_, err = svc.StartLesson(ctx, "u1", "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestServiceCompleteBlock_Sequence(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartLesson(ctx, "u1", "l1")
	require.NoError(t, err)

	_, err = svc.CompleteBlock(ctx, "u1", "l1", "b1")
	assert.True(t, errs.IsPreconditionFailed(err))

	for _, id := range []string{"b0", "b1", "b2"} {
		c, err := svc.CompleteBlock(ctx, "u1", "l1", id)
		require.NoError(t, err, id)
		assert.False(t, c.AlreadyCompleted)
	}

	blocks, err := svc.Lesson(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.True(t, Finished(blocks))

	again, err := svc.CompleteBlock(ctx, "u1", "l1", "b2")
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)

	completed, err := st.Events().QueryEvents(ctx, store.QueryOpts{Type: EventBlockCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 3)
	finished, err := st.Events().QueryEvents(ctx, store.QueryOpts{Type: EventLessonCompleted})
	require.NoError(t, err)
	assert.Len(t, finished, 1)
}

func TestServiceCompleteBlock_NotStarted(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CompleteBlock(context.Background(), "u1", "l1", "b0")
	assert.True(t, errs.IsPreconditionFailed(err))

	_, err = svc.Lesson(context.Background(), "u1", "l1")
	assert.True(t, errs.IsNotFound(err))
}

func TestServiceCompleteBlock_ConcurrentUnlocksOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartLesson(ctx, "u1", "l1")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		unlocked int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.CompleteBlock(ctx, "u1", "l1", "b0")
			if err != nil {
				t.Error(err)
				return
			}
			if c.Unlocked != nil {
				mu.Lock()
				unlocked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, unlocked)
}

func TestServiceRecordAttempt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartLesson(ctx, "u1", "l1")
	require.NoError(t, err)

	bp, err := svc.RecordAttempt(ctx, "u1", "l1", "b0", 75, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, bp.Status)
	assert.Equal(t, 1, bp.Attempts)

	_, err = svc.RecordAttempt(ctx, "u1", "l1", "b1", 75, 0)
	assert.True(t, errs.IsPreconditionFailed(err))

	_, err = svc.RecordAttempt(ctx, "u1", "l1", "nope", 75, 0)
	assert.True(t, errs.IsNotFound(err))
}

func TestServiceCompleteVocabularyBlocks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Not started: ignored.
	cs, err := svc.CompleteVocabularyBlocks(ctx, "u1", "spanish-1", map[string]int{"casa": 5, "perro": 5})
	require.NoError(t, err)
	assert.Empty(t, cs)

	_, err = svc.StartLesson(ctx, "u1", "spanish-1")
	require.NoError(t, err)

	cs, err = svc.CompleteVocabularyBlocks(ctx, "u1", "spanish-1", map[string]int{"casa": 3, "perro": 2})
	require.NoError(t, err)
	assert.Empty(t, cs, "perro below required mastery")

	// Both vocabulary blocks cascade; the quiz block only unlocks.
	cs, err = svc.CompleteVocabularyBlocks(ctx, "u1", "spanish-1", map[string]int{"casa": 3, "perro": 3, "sol": 2})
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "words-1", cs[0].Block.BlockID)
	assert.Equal(t, "words-2", cs[1].Block.BlockID)
	require.NotNil(t, cs[1].Unlocked)
	assert.Equal(t, "quiz", cs[1].Unlocked.BlockID)

	blocks, err := svc.Lesson(ctx, "u1", "spanish-1")
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, blocks[2].Status)
}
