package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/abhisek/lingva/ent/schema"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	s, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
	if s.Dialect() != "sqlite3" {
		t.Errorf("dialect = %q, want sqlite3", s.Dialect())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, migrate(context.Background(), s.DB(), s.Dialect()))
}

func TestMigrationTable(t *testing.T) {
	tbl, err := migrationTable(tableWordProgress, schema.WordProgress{})
	require.NoError(t, err)

	require.Len(t, tbl.PrimaryKey, 1)
	assert.Equal(t, "id", tbl.PrimaryKey[0].Name)

	cols := make(map[string]*entschema.Column, len(tbl.Columns))
	for _, c := range tbl.Columns {
		cols[c.Name] = c
	}
	require.Contains(t, cols, "version")
	assert.Equal(t, field.TypeInt64, cols["version"].Type)
	assert.False(t, cols["version"].Nullable)
	assert.Equal(t, field.TypeFloat64, cols["ease_factor"].Type)
	assert.Equal(t, field.TypeString, cols["learned_at"].Type)
	assert.True(t, cols["learned_at"].Nullable)

	var unique bool
	for _, idx := range tbl.Indexes {
		if idx.Name == "word_progress_user_id_word_id" && idx.Unique {
			unique = true
			assert.Len(t, idx.Columns, 2)
		}
	}
	assert.True(t, unique, "expected unique (user_id, word_id) index")
}

func TestMigrateCreatesIndexes(t *testing.T) {
	s := openTestStore(t)
	var n int
	err := s.DB().Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'word_progress_user_id_word_id'")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func newWordRecord(id, user, word string) *WordProgressRecord {
	return &WordProgressRecord{
		ID:           id,
		UserID:       user,
		WordID:       word,
		IntervalDays: 1,
		EaseFactor:   2.5,
	}
}

func TestWordProgressVersionedWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.WordProgress()

	got, err := repo.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Nil(t, got, "missing row returns nil")

	rec := newWordRecord("p1", "u1", "w1")
	require.NoError(t, repo.Insert(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	now := time.Date(2025, 3, 1, 9, 30, 0, 123456789, time.UTC)
	stale := *rec
	rec.MasteryLevel = 1
	rec.LastReviewedAt = At(now)
	rec.NextReviewAt = At(now.AddDate(0, 0, 3))
	rec.RecentResponses = "good"
	require.NoError(t, repo.Update(ctx, rec))
	assert.Equal(t, int64(2), rec.Version)

	stale.MasteryLevel = 4
	err = repo.Update(ctx, &stale)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))

	got, err = repo.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.MasteryLevel)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.LastReviewedAt.Equal(now))
	assert.True(t, got.LearnedAt.IsZero())
	assert.Nil(t, got.LearnedAt.Ptr())
}

func TestWordProgressDuplicateInsertConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.WordProgress()

	require.NoError(t, repo.Insert(ctx, newWordRecord("p1", "u1", "w1")))
	err := repo.Insert(ctx, newWordRecord("p2", "u1", "w1"))
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestIsUniqueViolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rawInsert := func(rec *WordProgressRecord) error {
		cols, vals := columnsOf(rec)
		q, args := s.bind(s.db).b.Insert(tableWordProgress).Columns(cols...).Values(vals...).Query()
		_, err := s.DB().ExecContext(ctx, q, args...)
		return err
	}
	require.NoError(t, rawInsert(newWordRecord("p1", "u1", "w1")))

	err := rawInsert(newWordRecord("p1", "u9", "w9"))
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "primary key: %v", err)

	err = rawInsert(newWordRecord("p2", "u1", "w1"))
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "unique index: %v", err)

	_, err = s.DB().ExecContext(ctx, "INSERT INTO word_progress (id) VALUES ('p3')")
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "not null: %v", err)

	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed: word_progress.id")))
}

func TestWordProgressListDue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.WordProgress()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	fresh := newWordRecord("p1", "u1", "fresh")
	due := newWordRecord("p2", "u1", "due")
	due.NextReviewAt = At(now.Add(-time.Hour))
	later := newWordRecord("p3", "u1", "later")
	later.NextReviewAt = At(now.Add(time.Hour))
	other := newWordRecord("p4", "u2", "due")

	for _, rec := range []*WordProgressRecord{fresh, due, later, other} {
		require.NoError(t, repo.Insert(ctx, rec))
	}

	got, err := repo.ListDue(ctx, "u1", now)
	require.NoError(t, err)
	var words []string
	for _, r := range got {
		words = append(words, r.WordID)
	}
	assert.ElementsMatch(t, []string{"fresh", "due"}, words)

	all, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(r Repos) error {
		if err := r.WordProgress().Insert(ctx, newWordRecord("p1", "u1", "w1")); err != nil {
			return err
		}
		if _, err := r.Events().Append(ctx, "word_learned", "u1", map[string]string{"word_id": "w1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.WordProgress().Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Nil(t, got)

	events, err := s.Events().QueryEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReviewEventsAppendAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.ReviewEvents()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, resp := range []string{"good", "again"} {
		require.NoError(t, repo.Append(ctx, &ReviewEventRecord{
			ID:             "e" + resp,
			UserID:         "u1",
			WordID:         "w1",
			Response:       resp,
			LatencyMs:      1200,
			Correct:        resp != "again",
			IntervalBefore: 1,
			IntervalAfter:  3,
			EaseBefore:     2.5,
			EaseAfter:      2.5,
			ReviewedAt:     At(t0.AddDate(0, 0, i)),
		}))
	}

	events, err := repo.ListByWord(ctx, "u1", "w1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "good", events[0].Response)
	assert.True(t, events[0].Correct)
	assert.False(t, events[1].Correct)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBlockProgressOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.BlockProgress()

	score := 80.0
	for _, order := range []int{2, 0, 1} {
		rec := &BlockProgressRecord{
			ID:         "bp" + string(rune('a'+order)),
			UserID:     "u1",
			LessonID:   "l1",
			BlockID:    "b" + string(rune('a'+order)),
			BlockKind:  "grammar",
			BlockOrder: order,
			Status:     "locked",
			IsLocked:   true,
		}
		if order == 1 {
			rec.LastAttemptScore = &score
		}
		require.NoError(t, repo.Insert(ctx, rec))
	}

	got, err := repo.ListByLesson(ctx, "u1", "l1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, i, rec.BlockOrder)
	}
	assert.Nil(t, got[0].LastAttemptScore)
	require.NotNil(t, got[1].LastAttemptScore)
	assert.InDelta(t, 80.0, *got[1].LastAttemptScore, 1e-9)

	// Duplicate order within a lesson is rejected.
	err = repo.Insert(ctx, &BlockProgressRecord{
		ID: "dup", UserID: "u1", LessonID: "l1", BlockID: "bz", BlockKind: "media", Status: "locked", IsLocked: true,
	})
	assert.True(t, errs.IsConflict(err))
}

func TestExamAttemptWithSections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.ExamAttempts()
	start := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	rec := &ExamAttemptRecord{
		ID:               "a1",
		UserID:           "u1",
		ExamID:           "exam-1",
		Status:           "in_progress",
		PassingThreshold: 60,
		StartedAt:        At(start),
		Sections: []SectionAttemptRecord{
			{ID: "s1", SectionID: "reading", Position: 0, Status: "in_progress", Answers: "[]", TimeLimitSecs: 600, OpenedAt: At(start)},
			{ID: "s2", SectionID: "writing", Position: 1, Status: "in_progress", Answers: "[]", TimeLimitSecs: 900},
		},
	}
	require.NoError(t, repo.Insert(ctx, rec))

	inProgress, err := repo.ListInProgress(ctx)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	require.Len(t, inProgress[0].Sections, 2)
	assert.Equal(t, "reading", inProgress[0].Sections[0].SectionID)
	assert.True(t, inProgress[0].Sections[1].OpenedAt.IsZero())

	rec.Sections[0].Status = "completed"
	rec.Sections[0].Score = 8
	rec.Sections[0].MaxScore = 10
	rec.TotalScore = 8
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "completed", got.Sections[0].Status)
	assert.InDelta(t, 8.0, got.TotalScore, 1e-9)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatisticsAndAchievements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"u2", "u1"} {
		require.NoError(t, s.Statistics().Insert(ctx, &StatisticsRecord{UserID: id}))
	}
	ids, err := s.Statistics().ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)

	st, err := s.Statistics().Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st)
	st.TotalXP = 50
	require.NoError(t, s.Statistics().Update(ctx, st))

	ua := &UserAchievementRecord{ID: "ua1", UserID: "u1", AchievementID: "first-steps", Progress: 40}
	require.NoError(t, s.Achievements().Insert(ctx, ua))
	ua.Progress = 100
	ua.IsCompleted = true
	ua.UnlockedAt = At(time.Now())
	require.NoError(t, s.Achievements().Update(ctx, ua))

	list, err := s.Achievements().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsCompleted)
	assert.False(t, list[0].UnlockedAt.IsZero())
}

func TestEventSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Events()

	var seqs []int64
	for _, typ := range []string{"block_completed", "achievement_unlocked", "block_completed"} {
		ev, err := repo.Append(ctx, typ, "u1", map[string]string{"k": typ})
		require.NoError(t, err)
		seqs = append(seqs, ev.Sequence)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	after, err := repo.QueryEvents(ctx, QueryOpts{After: 1})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(2), after[0].Sequence)

	blocks, err := repo.QueryEvents(ctx, QueryOpts{Type: "block_completed", Limit: 1})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.JSONEq(t, `{"k":"block_completed"}`, blocks[0].Payload)

	none, err := repo.QueryEvents(ctx, QueryOpts{UserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTimeScan(t *testing.T) {
	want := time.Date(2025, 6, 1, 8, 0, 0, 5, time.UTC)
	v, err := At(want).Value()
	require.NoError(t, err)

	var got Time
	require.NoError(t, got.Scan(v))
	assert.True(t, got.Equal(want))

	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsZero())

	v, err = Time{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, got.Scan(42))
	assert.Nil(t, TimeOf(nil).Ptr())
}
