package assessment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

func testExam() Exam {
	return Exam{
		ID:               "exam-1",
		PassingThreshold: 60,
		Sections: []Section{
			{ID: "reading", TimeLimit: 10 * time.Minute, Questions: []Question{
				{ID: "r1", Kind: QuestionText, Answer: "casa", Points: 2},
				{ID: "r2", Kind: QuestionText, Answer: "perro", Points: 2},
			}},
			{ID: "listening", TimeLimit: 5 * time.Minute, Questions: []Question{
				{ID: "l1", Kind: QuestionMultipleChoice, Options: []string{"sí", "no"}, Answer: "sí", Points: 1.5},
			}},
		},
	}
}

func ids() func() string {
	n := 0
	return func() string {
		n++
		return string(rune('a' + n))
	}
}

func startTestExam(t *testing.T) ExamAttempt {
	t.Helper()
	a, err := StartExam("att", "u1", testExam(), BlockRef{LessonID: "l1", BlockID: "final"}, t0, ids())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestStartExam(t *testing.T) {
	a := startTestExam(t)
	if len(a.Sections) != 2 {
		t.Fatalf("sections = %d", len(a.Sections))
	}
	if a.Sections[0].OpenedAt == nil || a.Sections[1].OpenedAt != nil {
		t.Error("only the first section opens at start")
	}
	if a.MaxScore != 5.5 {
		t.Errorf("max score = %v, want 5.5", a.MaxScore)
	}
	if got := a.Sections[0].Remaining(t0.Add(4 * time.Minute)); got != 6*time.Minute {
		t.Errorf("remaining = %s, want 6m", got)
	}
	if got := a.Sections[1].Remaining(t0.Add(time.Hour)); got != 5*time.Minute {
		t.Errorf("unopened remaining = %s, want full budget", got)
	}
}

func TestExamFullFlow(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)

	if _, _, err := CompleteExam(a, t0); !errs.IsPreconditionFailed(err) {
		t.Fatalf("complete with open sections: %v", err)
	}
	if _, _, err := SubmitSection(a, exam, "listening", nil, 0, t0); !errs.IsPreconditionFailed(err) {
		t.Errorf("submitting a section that is not open: %v", err)
	}

	a, more, err := SubmitSection(a, exam, "reading", map[string]string{"r1": "Casa", "r2": "gato"}, 12*time.Minute, t0.Add(9*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !more {
		t.Error("expected more sections")
	}
	if a.Sections[0].Score != 2 || a.Sections[0].Percentage != 50 {
		t.Errorf("reading score = %v (%v%%)", a.Sections[0].Score, a.Sections[0].Percentage)
	}
	if a.Sections[0].TimeSpent != 10*time.Minute {
		t.Errorf("time spent = %s, want capped at 10m", a.Sections[0].TimeSpent)
	}
	if a.Sections[1].OpenedAt == nil {
		t.Error("next section should open")
	}

	if _, _, err := SubmitSection(a, exam, "reading", nil, 0, t0); !errs.IsPreconditionFailed(err) {
		t.Errorf("resubmission: %v", err)
	}

	a, more, err = SubmitSection(a, exam, "listening", map[string]string{"l1": "1"}, 3*time.Minute, t0.Add(12*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if more {
		t.Error("no sections should remain")
	}

	done, completion, err := CompleteExam(a, t0.Add(13*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || !done.AllSectionsCompleted() {
		t.Errorf("status = %s", done.Status)
	}
	if done.TotalScore != done.Sections[0].Score+done.Sections[1].Score {
		t.Errorf("total score %v is not the section sum", done.TotalScore)
	}
	if done.TotalScore != 3.5 || done.TotalTimeSpent != 13*time.Minute {
		t.Errorf("totals = %v / %s", done.TotalScore, done.TotalTimeSpent)
	}
	if done.TotalPercentage != 63.64 {
		t.Errorf("total percentage = %v, want 63.64", done.TotalPercentage)
	}
	if completion == nil || completion.BlockID != "final" {
		t.Errorf("completion = %+v", completion)
	}
}

func TestSaveDraftsThenExpire(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)

	a, err := SaveSectionAnswers(a, exam, "reading", map[string]string{"r1": "casa"}, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	a, err = SaveSectionAnswers(a, exam, "reading", map[string]string{"r2": "perro"}, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Sections[0].Answers) != 2 {
		t.Fatalf("drafts = %+v", a.Sections[0].Answers)
	}

	// Not yet due.
	same, expired, err := ExpireSections(a, exam, t0.Add(5*time.Minute))
	if err != nil || len(expired) != 0 || same.Sections[0].Status != SectionInProgress {
		t.Fatalf("early expire: %v %v", expired, err)
	}

	late := t0.Add(11 * time.Minute)
	if _, err := SaveSectionAnswers(a, exam, "reading", map[string]string{"r1": "x"}, late); !errs.IsPreconditionFailed(err) {
		t.Errorf("saving after deadline: %v", err)
	}

	a, expired, err = ExpireSections(a, exam, late)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0] != "reading" {
		t.Fatalf("expired = %v", expired)
	}
	sec := a.Sections[0]
	if sec.Status != SectionCompleted || sec.Score != 4 || sec.TimeSpent != 10*time.Minute {
		t.Errorf("forced submission kept drafts? %+v", sec)
	}
	if a.Sections[1].OpenedAt == nil || !a.Sections[1].OpenedAt.Equal(late) {
		t.Errorf("listening opened at %v, want %v", a.Sections[1].OpenedAt, late)
	}
	if deadline, ok := a.Sections[1].Deadline(); !ok || !deadline.Equal(late.Add(5*time.Minute)) {
		t.Errorf("deadline = %v", deadline)
	}
}

func TestLateSubmissionIsForcedExpiry(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)

	a, err := SaveSectionAnswers(a, exam, "reading", map[string]string{"r1": "casa"}, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	late := t0.Add(30 * time.Minute)
	a, more, err := SubmitSection(a, exam, "reading", map[string]string{"r1": "casa", "r2": "perro"}, 0, late)
	if err != nil {
		t.Fatal(err)
	}
	if !more {
		t.Error("expected more sections")
	}
	sec := a.Sections[0]
	if sec.Score != 2 {
		t.Errorf("score = %v, want 2 from the saved draft only", sec.Score)
	}
	if len(sec.Answers) != 1 || sec.Answers[0].QuestionID != "r1" {
		t.Errorf("answers = %+v", sec.Answers)
	}
	if sec.TimeSpent != 10*time.Minute {
		t.Errorf("time spent = %s, want the full 10m limit", sec.TimeSpent)
	}
	if a.Sections[1].OpenedAt == nil || !a.Sections[1].OpenedAt.Equal(late) {
		t.Errorf("listening opened at %v, want %v", a.Sections[1].OpenedAt, late)
	}
}

func TestSubmitSectionChargesElapsedTime(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)

	a, _, err := SubmitSection(a, exam, "reading", map[string]string{"r1": "casa"}, 0, t0.Add(4*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Sections[0].TimeSpent; got != 4*time.Minute {
		t.Errorf("time spent = %s, want 4m elapsed", got)
	}

	a, _, err = SubmitSection(a, exam, "listening", nil, 7*time.Minute, t0.Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Sections[1].TimeSpent; got != 5*time.Minute {
		t.Errorf("time spent = %s, want capped at the 5m limit", got)
	}
}

func TestExamPassUsesExactRatio(t *testing.T) {
	exam := Exam{ID: "thirds", PassingThreshold: 66.67, Sections: []Section{
		{ID: "only", Questions: []Question{
			{ID: "a", Kind: QuestionText, Answer: "uno"},
			{ID: "b", Kind: QuestionText, Answer: "dos"},
			{ID: "c", Kind: QuestionText, Answer: "tres"},
		}},
	}}
	a, err := StartExam("att", "u1", exam, BlockRef{}, t0, ids())
	if err != nil {
		t.Fatal(err)
	}
	a, _, err = SubmitSection(a, exam, "only", map[string]string{"a": "uno", "b": "dos", "c": "x"}, 0, t0)
	if err != nil {
		t.Fatal(err)
	}
	done, _, err := CompleteExam(a, t0)
	if err != nil {
		t.Fatal(err)
	}
	if done.TotalPercentage != 66.67 || done.IsPassed() {
		t.Errorf("percentage %v passed=%v, want 66.67 and not passed", done.TotalPercentage, done.IsPassed())
	}
}

func TestExamAbandon(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)
	a, err := AbandonExam(a, t0)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := SubmitSection(a, exam, "reading", nil, 0, t0); !errs.IsPreconditionFailed(err) {
		t.Errorf("submit after abandon: %v", err)
	}
	if _, c, err := CompleteExam(a, t0); !errs.IsPreconditionFailed(err) || c != nil {
		t.Errorf("complete after abandon: %v", err)
	}
	if _, expired, _ := ExpireSections(a, exam, t0.Add(time.Hour)); len(expired) != 0 {
		t.Error("abandoned attempts never expire sections")
	}
}

func TestSubmitSection_Errors(t *testing.T) {
	exam := testExam()
	a := startTestExam(t)

	if _, _, err := SubmitSection(a, exam, "reading", nil, -time.Second, t0); !errs.IsInvalidArgument(err) {
		t.Errorf("negative time: %v", err)
	}
	if _, _, err := SubmitSection(a, exam, "speaking", nil, 0, t0); !errs.IsNotFound(err) {
		t.Errorf("unknown section: %v", err)
	}
	if _, _, err := SubmitSection(a, exam, "reading", map[string]string{"zz": "x"}, 0, t0); !errs.IsNotFound(err) {
		t.Errorf("unknown question: %v", err)
	}
}

func TestSectionUnmarshalTimeLimit(t *testing.T) {
	var s Section
	if err := json.Unmarshal([]byte(`{"id":"r","time_limit_secs":90,"questions":[{"id":"q","answer":"a"}]}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.ID != "r" || s.TimeLimit != 90*time.Second || len(s.Questions) != 1 {
		t.Errorf("section = %+v", s)
	}
}
