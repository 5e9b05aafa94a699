package progression

import (
	"encoding/json"
	"testing"

	"github.com/abhisek/lingva/internal/errs"
)

func TestBlockUnmarshal_Variants(t *testing.T) {
	data := `[
		{"id":"v1","order":0,"kind":"vocabulary","title":"Words","payload":{"words":["casa","perro"],"required_mastery":4}},
		{"id":"g1","order":1,"kind":"grammar","payload":{"rule":"ser vs estar"}},
		{"id":"q1","order":2,"kind":"quiz","payload":{"quiz_id":"quiz-1"}},
		{"id":"e1","order":3,"kind":"exam","payload":{"exam_id":"exam-1"}},
		{"id":"m1","order":4,"kind":"media","payload":{"url":"https://cdn.example/a.mp3","media_type":"audio"}}
	]`
	var blocks []Block
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	v, ok := blocks[0].Payload.(*VocabularyPayload)
	if !ok || len(v.WordIDs) != 2 || v.RequiredMastery != 4 {
		t.Errorf("vocabulary payload = %#v", blocks[0].Payload)
	}
	if _, ok := blocks[1].Payload.(*GrammarPayload); !ok {
		t.Errorf("grammar payload = %T", blocks[1].Payload)
	}
	if q, ok := blocks[2].Payload.(*QuizPayload); !ok || q.QuizID != "quiz-1" {
		t.Errorf("quiz payload = %#v", blocks[2].Payload)
	}
	if e, ok := blocks[3].Payload.(*ExamPayload); !ok || e.ExamID != "exam-1" {
		t.Errorf("exam payload = %#v", blocks[3].Payload)
	}
	if m, ok := blocks[4].Payload.(*MediaPayload); !ok || m.MediaType != "audio" {
		t.Errorf("media payload = %#v", blocks[4].Payload)
	}
	for _, b := range blocks {
		if b.Payload.Kind() != b.Kind {
			t.Errorf("block %s: payload kind %s != %s", b.ID, b.Payload.Kind(), b.Kind)
		}
	}
}

func TestBlockUnmarshal_UnknownKind(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"id":"x","kind":"podcast"}`), &b)
	if !errs.IsInvalidArgument(err) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestBlockMarshalRoundTrip(t *testing.T) {
	in := Block{ID: "q1", Order: 2, Kind: KindQuiz, Title: "Check", Payload: &QuizPayload{QuizID: "quiz-9"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Block
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if q, ok := out.Payload.(*QuizPayload); !ok || q.QuizID != "quiz-9" || out.Order != 2 {
		t.Errorf("round trip = %#v", out)
	}
}

func TestCompletionTrigger(t *testing.T) {
	tests := []struct {
		payload Payload
		want    Trigger
	}{
		{&VocabularyPayload{}, TriggerMastery},
		{&QuizPayload{}, TriggerQuizPass},
		{&ExamPayload{}, TriggerExamPass},
		{&GrammarPayload{}, TriggerExplicit},
		{&MediaPayload{}, TriggerExplicit},
	}
	for _, tt := range tests {
		if got := CompletionTrigger(Block{Kind: tt.payload.Kind(), Payload: tt.payload}); got != tt.want {
			t.Errorf("CompletionTrigger(%s) = %s, want %s", tt.payload.Kind(), got, tt.want)
		}
	}
}

func TestWordsMastered(t *testing.T) {
	b := Block{Kind: KindVocabulary, Payload: &VocabularyPayload{WordIDs: []string{"a", "b"}}}

	if WordsMastered(b, map[string]int{"a": 3}) {
		t.Error("missing word must not count as mastered")
	}
	if WordsMastered(b, map[string]int{"a": 3, "b": 2}) {
		t.Error("mastery below default threshold")
	}
	if !WordsMastered(b, map[string]int{"a": 3, "b": 5}) {
		t.Error("expected mastered at default threshold")
	}

	strict := Block{Kind: KindVocabulary, Payload: &VocabularyPayload{WordIDs: []string{"a"}, RequiredMastery: 5}}
	if WordsMastered(strict, map[string]int{"a": 4}) {
		t.Error("custom threshold ignored")
	}

	quiz := Block{Kind: KindQuiz, Payload: &QuizPayload{}}
	if WordsMastered(quiz, nil) {
		t.Error("non-vocabulary block reported mastered")
	}
}
