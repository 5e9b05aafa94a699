package spacedrep

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

type wordSet map[string]bool

func (w wordSet) HasWord(id string) bool { return w[id] }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func newTestService(t *testing.T, words WordLookup) (*Service, *store.Store) {
	t.Helper()
	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	st, err := store.Open(context.Background(), store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := NewService(st, words, keylock.New(), log)
	return svc, st
}

func TestServiceReview_PersistsTrace(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	for _, r := range []Response{ResponseGood, ResponseGood, ResponseEasy, ResponseAgain, ResponseGood} {
		res, err := svc.Review(ctx, "u1", "casa", r, 1500*time.Millisecond)
		require.NoError(t, err)
		now = *res.Progress.NextReviewAt
	}

	p, err := svc.Progress(ctx, "u1", "casa")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 3, p.IntervalDays)
	assert.InDelta(t, 2.45, p.EaseFactor, 1e-9)
	assert.Equal(t, 2, p.MasteryLevel)
	assert.Equal(t, 5, p.TimesReviewed)
	assert.Equal(t, []Response{ResponseAgain, ResponseGood}, p.RecentResponses)
	assert.Equal(t, int64(5), p.Version)

	events, err := st.ReviewEvents().ListByWord(ctx, "u1", "casa")
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, "easy", events[2].Response)
	assert.Equal(t, 8, events[2].IntervalBefore)
	assert.Equal(t, 26, events[2].IntervalAfter)
	assert.Equal(t, int64(1500), events[0].LatencyMs)
}

func TestServiceReview_LearnedOnce(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	learned := 0
	for i := 0; i < 7; i++ {
		res, err := svc.Review(ctx, "u1", "perro", ResponseEasy, 0)
		require.NoError(t, err)
		if res.Learned {
			learned++
			assert.Equal(t, MaxMasteryLevel, res.Progress.MasteryLevel)
		}
	}
	assert.Equal(t, 1, learned)

	evs, err := st.Events().QueryEvents(ctx, store.QueryOpts{Type: EventWordLearned})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestServiceReview_Validation(t *testing.T) {
	svc, st := newTestService(t, wordSet{"casa": true})
	ctx := context.Background()

	_, err := svc.Review(ctx, "u1", "gato", ResponseGood, 0)
	assert.True(t, errs.IsNotFound(err), "unknown word: %v", err)

	_, err = svc.Review(ctx, "", "casa", ResponseGood, 0)
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.Review(ctx, "u1", "casa", Response("maybe"), 0)
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.Review(ctx, "u1", "casa", ResponseGood, -time.Second)
	assert.True(t, errs.IsInvalidArgument(err))

	// Nothing was written by the rejected reviews.
	p, err := svc.Progress(ctx, "u1", "casa")
	require.NoError(t, err)
	assert.Nil(t, p)
	n, err := st.ReviewEvents().CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServiceReview_ConcurrentWritersSerialize(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Review(ctx, "u1", "sol", ResponseHard, 0)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	p, err := svc.Progress(ctx, "u1", "sol")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, n, p.TimesReviewed)
	assert.Equal(t, int64(n), p.Version)
}

func TestServiceDue(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	_, err := svc.Review(ctx, "u1", "agua", ResponseAgain, 0) // next review in 1 day
	require.NoError(t, err)
	_, err = svc.Review(ctx, "u1", "luz", ResponseEasy, 0) // next review in 4 days
	require.NoError(t, err)

	due, err := svc.Due(ctx, "u1", now.AddDate(0, 0, 2), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "agua", due[0].WordID)

	mastery, err := svc.MasteryByWord(ctx, "u1", []string{"luz", "agua", "nuevo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"luz": 1, "agua": 0, "nuevo": 0}, mastery)
}
