package spacedrep

import (
	"math"
	"testing"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func review(t *testing.T, p WordProgress, r Response, now time.Time) WordProgress {
	t.Helper()
	next, _, err := RecordReview(p, r, time.Second, now)
	if err != nil {
		t.Fatalf("RecordReview(%s): %v", r, err)
	}
	return next
}

func TestRecordReview_Trace(t *testing.T) {
	steps := []struct {
		response Response
		interval int
		ease     float64
		mastery  int
	}{
		{ResponseGood, 3, 2.5, 1},
		{ResponseGood, 8, 2.5, 2},
		{ResponseEasy, 26, 2.65, 3},
		{ResponseAgain, 1, 2.45, 2},
		// A recent "again" blocks the mastery gain.
		{ResponseGood, 3, 2.45, 2},
	}

	p := NewWordProgress("u1", "w1")
	now := t0
	for i, s := range steps {
		p = review(t, p, s.response, now)
		if p.IntervalDays != s.interval {
			t.Errorf("step %d (%s): interval = %d, want %d", i, s.response, p.IntervalDays, s.interval)
		}
		if math.Abs(p.EaseFactor-s.ease) > 1e-9 {
			t.Errorf("step %d (%s): ease = %v, want %v", i, s.response, p.EaseFactor, s.ease)
		}
		if p.MasteryLevel != s.mastery {
			t.Errorf("step %d (%s): mastery = %d, want %d", i, s.response, p.MasteryLevel, s.mastery)
		}
		want := now.AddDate(0, 0, s.interval)
		if !p.NextReviewAt.Equal(want) {
			t.Errorf("step %d: next review = %v, want %v", i, p.NextReviewAt, want)
		}
		if !p.NextReviewAt.After(*p.LastReviewedAt) {
			t.Errorf("step %d: next review not after last review", i)
		}
		now = *p.NextReviewAt
	}

	if p.TimesReviewed != 5 || p.TimesCorrect != 4 || p.TimesIncorrect != 1 {
		t.Errorf("counters = %d/%d/%d, want 5/4/1", p.TimesReviewed, p.TimesCorrect, p.TimesIncorrect)
	}
}

func TestRecordReview_AgainResetsInterval(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	p.IntervalDays = 40
	p.EaseFactor = 1.35
	p.MasteryLevel = 0

	next, ev, err := RecordReview(p, ResponseAgain, 0, t0)
	if err != nil {
		t.Fatal(err)
	}
	if next.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1", next.IntervalDays)
	}
	if next.EaseFactor != MinEaseFactor {
		t.Errorf("ease = %v, want floor %v", next.EaseFactor, MinEaseFactor)
	}
	if next.MasteryLevel != 0 {
		t.Errorf("mastery = %d, want 0", next.MasteryLevel)
	}
	if ev.Correct {
		t.Error("again must not count as correct")
	}
	if ev.IntervalBefore != 40 || ev.IntervalAfter != 1 {
		t.Errorf("event intervals = %d -> %d", ev.IntervalBefore, ev.IntervalAfter)
	}
}

func TestRecordReview_Hard(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	p.IntervalDays = 10
	p.MasteryLevel = 2

	next := review(t, p, ResponseHard, t0)
	if next.IntervalDays != 12 {
		t.Errorf("interval = %d, want 12", next.IntervalDays)
	}
	if math.Abs(next.EaseFactor-2.35) > 1e-9 {
		t.Errorf("ease = %v, want 2.35", next.EaseFactor)
	}
	if next.MasteryLevel != 2 {
		t.Errorf("mastery = %d, want unchanged 2", next.MasteryLevel)
	}
	if next.TimesCorrect != 1 {
		t.Errorf("hard should count as correct")
	}
}

func TestRecordReview_GoodIntervalsNonDecreasing(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	prev := 0
	now := t0
	for i := 0; i < 12; i++ {
		p = review(t, p, ResponseGood, now)
		if p.IntervalDays < prev {
			t.Fatalf("review %d: interval %d < previous %d", i, p.IntervalDays, prev)
		}
		prev = p.IntervalDays
		now = *p.NextReviewAt
	}
	if p.MasteryLevel != MaxMasteryLevel {
		t.Errorf("mastery = %d, want capped at %d", p.MasteryLevel, MaxMasteryLevel)
	}
}

func TestRecordReview_BoundsHold(t *testing.T) {
	// Any sequence of responses keeps mastery within [0,5] and ease >= 1.3.
	seq := []Response{
		ResponseAgain, ResponseAgain, ResponseAgain, ResponseAgain, ResponseAgain, ResponseAgain,
		ResponseEasy, ResponseEasy, ResponseEasy, ResponseEasy, ResponseEasy, ResponseEasy, ResponseEasy,
		ResponseHard, ResponseHard, ResponseHard, ResponseHard, ResponseHard, ResponseHard, ResponseHard,
		ResponseGood, ResponseAgain, ResponseGood, ResponseGood, ResponseGood,
	}
	p := NewWordProgress("u1", "w1")
	for i, r := range seq {
		p = review(t, p, r, t0.AddDate(0, 0, i))
		if p.MasteryLevel < 0 || p.MasteryLevel > MaxMasteryLevel {
			t.Fatalf("step %d: mastery %d out of range", i, p.MasteryLevel)
		}
		if p.EaseFactor < MinEaseFactor {
			t.Fatalf("step %d: ease %v below floor", i, p.EaseFactor)
		}
		if p.IntervalDays < 1 {
			t.Fatalf("step %d: interval %d below 1", i, p.IntervalDays)
		}
	}
}

func TestRecordReview_ClampsCorruptState(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	p.MasteryLevel = 9
	p.EaseFactor = 0.5
	p.IntervalDays = 0

	next := review(t, p, ResponseEasy, t0)
	if next.MasteryLevel != MaxMasteryLevel {
		t.Errorf("mastery = %d, want %d", next.MasteryLevel, MaxMasteryLevel)
	}
	if next.EaseFactor < MinEaseFactor {
		t.Errorf("ease = %v, below floor", next.EaseFactor)
	}
}

func TestRecordReview_LearnedAtSetOnce(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	p.MasteryLevel = 4

	first := review(t, p, ResponseEasy, t0)
	if first.LearnedAt == nil || !first.LearnedAt.Equal(t0) {
		t.Fatalf("LearnedAt = %v, want %v", first.LearnedAt, t0)
	}

	later := t0.AddDate(0, 1, 0)
	again := review(t, review(t, first, ResponseAgain, later), ResponseEasy, later)
	if !again.LearnedAt.Equal(t0) {
		t.Errorf("LearnedAt moved to %v", again.LearnedAt)
	}
}

func TestRecordReview_InvalidInput(t *testing.T) {
	p := NewWordProgress("u1", "w1")

	if _, _, err := RecordReview(p, Response("meh"), 0, t0); !errs.IsInvalidArgument(err) {
		t.Errorf("unknown response: err = %v, want InvalidArgument", err)
	}
	if _, _, err := RecordReview(p, ResponseGood, -time.Millisecond, t0); !errs.IsInvalidArgument(err) {
		t.Errorf("negative latency: err = %v, want InvalidArgument", err)
	}
}

func TestRecordReview_DoesNotAliasRecent(t *testing.T) {
	p := NewWordProgress("u1", "w1")
	p.RecentResponses = make([]Response, 1, 4)
	p.RecentResponses[0] = ResponseGood

	next := review(t, p, ResponseEasy, t0)
	if len(p.RecentResponses) != 1 {
		t.Fatalf("input mutated: %v", p.RecentResponses)
	}
	if len(next.RecentResponses) != 2 {
		t.Fatalf("recent = %v", next.RecentResponses)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		in      string
		want    Response
		wantErr bool
	}{
		{"good", ResponseGood, false},
		{" EASY ", ResponseEasy, false},
		{"Again", ResponseAgain, false},
		{"hard", ResponseHard, false},
		{"skip", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseResponse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResponse(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResponse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecentRoundTrip(t *testing.T) {
	in := []Response{ResponseEasy, ResponseAgain}
	if got := parseRecent(formatRecent(in)); len(got) != 2 || got[0] != ResponseEasy || got[1] != ResponseAgain {
		t.Errorf("round trip = %v", got)
	}
	if got := parseRecent(""); got != nil {
		t.Errorf("empty = %v, want nil", got)
	}
}
