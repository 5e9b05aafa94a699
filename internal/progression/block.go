package progression

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/lingva/internal/errs"
)

// Kind identifies the type of content a block holds.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindGrammar    Kind = "grammar"
	KindQuiz       Kind = "quiz"
	KindExam       Kind = "exam"
	KindMedia      Kind = "media"
)

// DefaultRequiredMastery is the mastery every word of a vocabulary block must
// reach before the block completes on its own.
const DefaultRequiredMastery = 3

// Lesson is an ordered sequence of blocks.
type Lesson struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// Block returns the lesson's block with the given id.
func (l Lesson) Block(id string) (Block, bool) {
	for _, b := range l.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// Block is one step of a lesson. Payload holds the kind specific content and
// is one of *VocabularyPayload, *GrammarPayload, *QuizPayload, *ExamPayload
// or *MediaPayload.
type Block struct {
	ID       string
	LessonID string
	Order    int
	Kind     Kind
	Title    string
	Payload  Payload
}

// Payload is implemented by the kind specific block contents.
type Payload interface {
	Kind() Kind
}

type VocabularyPayload struct {
	WordIDs []string `json:"words"`
	// RequiredMastery defaults to DefaultRequiredMastery when zero.
	RequiredMastery int `json:"required_mastery,omitempty"`
}

type GrammarPayload struct {
	Rule     string   `json:"rule"`
	Examples []string `json:"examples,omitempty"`
}

type QuizPayload struct {
	QuizID string `json:"quiz_id"`
}

type ExamPayload struct {
	ExamID string `json:"exam_id"`
}

type MediaPayload struct {
	URL          string `json:"url"`
	MediaType    string `json:"media_type"`
	DurationSecs int    `json:"duration_secs,omitempty"`
}

func (*VocabularyPayload) Kind() Kind { return KindVocabulary }
func (*GrammarPayload) Kind() Kind    { return KindGrammar }
func (*QuizPayload) Kind() Kind       { return KindQuiz }
func (*ExamPayload) Kind() Kind       { return KindExam }
func (*MediaPayload) Kind() Kind      { return KindMedia }

type blockJSON struct {
	ID       string          `json:"id"`
	LessonID string          `json:"lesson_id,omitempty"`
	Order    int             `json:"order"`
	Kind     Kind            `json:"kind"`
	Title    string          `json:"title"`
	Payload  json.RawMessage `json:"payload"`
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var p Payload
	switch raw.Kind {
	case KindVocabulary:
		p = &VocabularyPayload{}
	case KindGrammar:
		p = &GrammarPayload{}
	case KindQuiz:
		p = &QuizPayload{}
	case KindExam:
		p = &ExamPayload{}
	case KindMedia:
		p = &MediaPayload{}
	default:
		return errs.InvalidArgument("kind", "unknown block kind %q", raw.Kind)
	}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, p); err != nil {
			return fmt.Errorf("block %s payload: %w", raw.ID, err)
		}
	}

	*b = Block{
		ID:       raw.ID,
		LessonID: raw.LessonID,
		Order:    raw.Order,
		Kind:     raw.Kind,
		Title:    raw.Title,
		Payload:  p,
	}
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockJSON{
		ID:       b.ID,
		LessonID: b.LessonID,
		Order:    b.Order,
		Kind:     b.Kind,
		Title:    b.Title,
		Payload:  payload,
	})
}

// Trigger names what completes a block.
type Trigger string

const (
	TriggerMastery  Trigger = "mastery"   // every word reaches the required mastery
	TriggerQuizPass Trigger = "quiz_pass" // a passing quiz attempt
	TriggerExamPass Trigger = "exam_pass" // a passing exam attempt
	TriggerExplicit Trigger = "explicit"  // the learner marks it done
)

// CompletionTrigger reports what completes b.
func CompletionTrigger(b Block) Trigger {
	switch b.Payload.(type) {
	case *VocabularyPayload:
		return TriggerMastery
	case *QuizPayload:
		return TriggerQuizPass
	case *ExamPayload:
		return TriggerExamPass
	default:
		return TriggerExplicit
	}
}

// WordsMastered reports whether every word of a vocabulary block has reached
// the block's required mastery. Other kinds report false.
func WordsMastered(b Block, mastery map[string]int) bool {
	v, ok := b.Payload.(*VocabularyPayload)
	if !ok || len(v.WordIDs) == 0 {
		return false
	}
	required := v.RequiredMastery
	if required <= 0 {
		required = DefaultRequiredMastery
	}
	for _, w := range v.WordIDs {
		if mastery[w] < required {
			return false
		}
	}
	return true
}
