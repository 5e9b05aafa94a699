package assessment

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/abhisek/lingva/internal/errs"
)

// Exam is a static exam definition made of timed sections taken in order.
type Exam struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	PassingThreshold float64   `json:"passing_threshold"`
	Sections         []Section `json:"sections"`
}

// Section is a timed, skill scoped part of an exam.
type Section struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	TimeLimit time.Duration `json:"-"`
	Questions []Question    `json:"questions"`
}

func (s *Section) UnmarshalJSON(data []byte) error {
	type plain Section
	var raw struct {
		plain
		TimeLimitSecs int64 `json:"time_limit_secs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Section(raw.plain)
	s.TimeLimit = time.Duration(raw.TimeLimitSecs) * time.Second
	return nil
}

// Section returns the exam section with the given id.
func (e Exam) Section(id string) (Section, bool) {
	for _, s := range e.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionStatus is the state of one section attempt.
type SectionStatus string

const (
	SectionInProgress SectionStatus = "in_progress"
	SectionCompleted  SectionStatus = "completed"
)

// SectionAttempt is the learner's work on one section. A section is open once
// OpenedAt is set; only the first uncompleted section is open.
type SectionAttempt struct {
	ID        string
	SectionID string
	Position  int
	Status    SectionStatus
	// Answers holds judged responses; drafts saved before submission are
	// kept and scored on submission.
	Answers     []Answer
	Score       float64
	MaxScore    float64
	Percentage  float64
	TimeSpent   time.Duration
	TimeLimit   time.Duration
	OpenedAt    *time.Time
	CompletedAt *time.Time
}

// Deadline returns when an open section runs out of time. Sections without a
// limit or not yet opened have no deadline.
func (s SectionAttempt) Deadline() (time.Time, bool) {
	if s.OpenedAt == nil || s.TimeLimit <= 0 {
		return time.Time{}, false
	}
	return s.OpenedAt.Add(s.TimeLimit), true
}

// Remaining returns the unused time budget at now. Sections without a limit
// report zero.
func (s SectionAttempt) Remaining(now time.Time) time.Duration {
	if s.Status == SectionCompleted || s.TimeLimit <= 0 {
		return 0
	}
	if s.OpenedAt == nil {
		return s.TimeLimit
	}
	return max(s.TimeLimit-now.Sub(*s.OpenedAt), 0)
}

// ExamAttempt is one learner's attempt at an exam.
type ExamAttempt struct {
	ID               string
	UserID           string
	ExamID           string
	Origin           BlockRef
	Status           Status
	Sections         []SectionAttempt
	TotalScore       float64
	MaxScore         float64
	TotalPercentage  float64
	TotalTimeSpent   time.Duration
	PassingThreshold float64
	StartedAt        time.Time
	CompletedAt      *time.Time
	Version          int64
}

// IsPassed reports whether a completed attempt reached the passing threshold.
func (a ExamAttempt) IsPassed() bool {
	return a.Status == StatusCompleted && reaches(a.TotalScore, a.MaxScore, a.PassingThreshold)
}

// CurrentSection returns the index of the open section, if any.
func (a ExamAttempt) CurrentSection() (int, bool) {
	for i, s := range a.Sections {
		if s.Status != SectionCompleted {
			return i, s.OpenedAt != nil
		}
	}
	return -1, false
}

// AllSectionsCompleted reports whether every section is completed.
func (a ExamAttempt) AllSectionsCompleted() bool {
	for _, s := range a.Sections {
		if s.Status != SectionCompleted {
			return false
		}
	}
	return len(a.Sections) > 0
}

// StartExam opens an attempt with one section attempt per exam section. The
// first section opens immediately.
func StartExam(id, userID string, exam Exam, origin BlockRef, now time.Time, newID func() string) (ExamAttempt, error) {
	if userID == "" {
		return ExamAttempt{}, errs.InvalidArgument("user_id", "must not be empty")
	}
	if len(exam.Sections) == 0 {
		return ExamAttempt{}, errs.InvalidArgument("exam", "exam %s has no sections", exam.ID)
	}

	a := ExamAttempt{
		ID:               id,
		UserID:           userID,
		ExamID:           exam.ID,
		Origin:           origin,
		Status:           StatusInProgress,
		PassingThreshold: exam.PassingThreshold,
		StartedAt:        now,
	}
	for i, sec := range exam.Sections {
		sa := SectionAttempt{
			ID:        newID(),
			SectionID: sec.ID,
			Position:  i,
			Status:    SectionInProgress,
			MaxScore:  maxScore(sec.Questions),
			TimeLimit: sec.TimeLimit,
		}
		if i == 0 {
			openedAt := now
			sa.OpenedAt = &openedAt
		}
		a.MaxScore += sa.MaxScore
		a.Sections = append(a.Sections, sa)
	}
	return a, nil
}

// SaveSectionAnswers records draft responses on the open section, replacing
// earlier drafts for the same questions. Saving after the deadline is
// rejected; the drafts already saved are what a forced submission scores.
func SaveSectionAnswers(a ExamAttempt, exam Exam, sectionID string, responses map[string]string, now time.Time) (ExamAttempt, error) {
	idx, sec, err := openSection(a, exam, sectionID)
	if err != nil {
		return a, err
	}
	if deadline, ok := a.Sections[idx].Deadline(); ok && now.After(deadline) {
		return a, errs.PreconditionFailed("section %s ran out of time", sectionID)
	}
	answers, err := mergeAnswers(a.Sections[idx].Answers, sec, responses, now)
	if err != nil {
		return a, err
	}

	next := cloneExam(a)
	next.Sections[idx].Answers = answers
	return next, nil
}

// SubmitSection scores and completes the open section, merging responses
// over any saved drafts, and opens the next one. The time charged is at
// least the time since the section opened and at most its limit. Past the
// deadline the submission is a forced expiry: responses are ignored, only
// saved drafts are scored and the full limit is charged. It reports whether
// sections remain. Completed sections are write-once.
func SubmitSection(a ExamAttempt, exam Exam, sectionID string, responses map[string]string, timeSpent time.Duration, now time.Time) (ExamAttempt, bool, error) {
	if timeSpent < 0 {
		return a, false, errs.InvalidArgument("time_spent", "must not be negative, got %s", timeSpent)
	}
	idx, sec, err := openSection(a, exam, sectionID)
	if err != nil {
		return a, false, err
	}
	open := a.Sections[idx]
	if deadline, ok := open.Deadline(); ok && now.After(deadline) {
		responses = nil
		timeSpent = open.TimeLimit
	}
	if open.OpenedAt != nil {
		timeSpent = max(timeSpent, now.Sub(*open.OpenedAt))
	}
	answers, err := mergeAnswers(open.Answers, sec, responses, now)
	if err != nil {
		return a, false, err
	}

	next := cloneExam(a)
	s := &next.Sections[idx]
	s.Answers = answers
	s.Score = 0
	for _, ans := range answers {
		s.Score += ans.Points
	}
	s.Percentage = percentage(s.Score, s.MaxScore)
	if s.TimeLimit > 0 {
		timeSpent = min(timeSpent, s.TimeLimit)
	}
	s.TimeSpent = timeSpent
	s.Status = SectionCompleted
	completedAt := now
	s.CompletedAt = &completedAt

	next.TotalScore += s.Score
	next.TotalTimeSpent += s.TimeSpent

	more := false
	if idx+1 < len(next.Sections) {
		openedAt := now
		next.Sections[idx+1].OpenedAt = &openedAt
		more = true
	}
	return next, more, nil
}

// ExpireSections submits the open section if its deadline passed at now,
// scoring whatever drafts were saved and charging the full time limit. The
// next section opens at now. It returns the ids of the sections it submitted.
func ExpireSections(a ExamAttempt, exam Exam, now time.Time) (ExamAttempt, []string, error) {
	if a.Status != StatusInProgress {
		return a, nil, nil
	}
	var expired []string
	for {
		idx, open := a.CurrentSection()
		if !open {
			return a, expired, nil
		}
		sec := a.Sections[idx]
		deadline, ok := sec.Deadline()
		if !ok || now.Before(deadline) {
			return a, expired, nil
		}
		next, _, err := SubmitSection(a, exam, sec.SectionID, nil, sec.TimeLimit, now)
		if err != nil {
			return a, expired, err
		}
		a = next
		expired = append(expired, sec.SectionID)
	}
}

// CompleteExam completes an attempt whose sections are all completed and
// recomputes the totals from the sections. A passed attempt with an
// originating block yields a BlockCompletion.
func CompleteExam(a ExamAttempt, now time.Time) (ExamAttempt, *BlockCompletion, error) {
	if a.Status != StatusInProgress {
		return a, nil, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	if !a.AllSectionsCompleted() {
		return a, nil, errs.PreconditionFailed("attempt %s has sections in progress", a.ID)
	}

	next := cloneExam(a)
	next.TotalScore, next.MaxScore, next.TotalTimeSpent = 0, 0, 0
	for _, s := range next.Sections {
		next.TotalScore += s.Score
		next.MaxScore += s.MaxScore
		next.TotalTimeSpent += s.TimeSpent
	}
	next.TotalPercentage = percentage(next.TotalScore, next.MaxScore)
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
		Percentage: next.TotalPercentage,
		TimeSpent:  next.TotalTimeSpent,
	}, nil
}

// AbandonExam cancels an in-progress attempt.
func AbandonExam(a ExamAttempt, now time.Time) (ExamAttempt, error) {
	if a.Status != StatusInProgress {
		return a, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	next := cloneExam(a)
	next.Status = StatusAbandoned
	completedAt := now
	next.CompletedAt = &completedAt
	return next, nil
}

// openSection resolves sectionID to the attempt's open section.
func openSection(a ExamAttempt, exam Exam, sectionID string) (int, Section, error) {
	if a.Status != StatusInProgress {
		return -1, Section{}, errs.PreconditionFailed("attempt %s is %s", a.ID, a.Status)
	}
	sec, ok := exam.Section(sectionID)
	if !ok {
		return -1, Section{}, errs.NotFound("section", sectionID)
	}
	idx := -1
	for i, s := range a.Sections {
		if s.SectionID == sectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, Section{}, errs.NotFound("section", sectionID)
	}
	if a.Sections[idx].Status == SectionCompleted {
		return -1, Section{}, errs.PreconditionFailed("section %s already submitted", sectionID)
	}
	if cur, open := a.CurrentSection(); cur != idx || !open {
		return -1, Section{}, errs.PreconditionFailed("section %s is not open", sectionID)
	}
	return idx, sec, nil
}

// mergeAnswers judges responses in question order and replaces prior answers
// to the same questions.
func mergeAnswers(prior []Answer, sec Section, responses map[string]string, now time.Time) ([]Answer, error) {
	for qid, resp := range responses {
		if _, ok := findQuestion(sec.Questions, qid); !ok {
			return nil, errs.NotFound("question", qid)
		}
		if strings.TrimSpace(resp) == "" {
			return nil, errs.InvalidArgument("response", "empty response for question %s", qid)
		}
	}
	byQuestion := make(map[string]Answer, len(prior)+len(responses))
	for _, ans := range prior {
		byQuestion[ans.QuestionID] = ans
	}
	for _, q := range sec.Questions {
		if resp, ok := responses[q.ID]; ok {
			byQuestion[q.ID] = judge(q, resp, now)
		}
	}

	out := make([]Answer, 0, len(byQuestion))
	for _, q := range sec.Questions {
		if ans, ok := byQuestion[q.ID]; ok {
			out = append(out, ans)
		}
	}
	return out, nil
}

func cloneExam(a ExamAttempt) ExamAttempt {
	next := a
	next.Sections = append([]SectionAttempt(nil), a.Sections...)
	return next
}
