// Package catalog loads the static course content: words, lessons and their
// blocks, quizzes, exams and achievements.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/progression"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed default.json
var defaultJSON []byte

const schemaURL = "schema://catalog.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Word is a vocabulary entry.
type Word struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// Catalog is an immutable, validated set of course definitions.
type Catalog struct {
	Language string                    `json:"language,omitempty"`
	Words    []Word                    `json:"words"`
	Lessons  []progression.Lesson      `json:"lessons"`
	Quizzes  []assessment.Quiz         `json:"quizzes,omitempty"`
	Exams    []assessment.Exam         `json:"exams,omitempty"`
	Defs     []achievement.Achievement `json:"achievements,omitempty"`

	words         map[string]Word
	lessons       map[string]progression.Lesson
	quizzes       map[string]assessment.Quiz
	exams         map[string]assessment.Exam
	lessonsByWord map[string][]string
}

// Default returns the built-in sample catalog.
func Default() (*Catalog, error) {
	return Parse(defaultJSON)
}

// Load reads a catalog file. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse validates data against the catalog schema, decodes it and checks
// cross references.
func Parse(data []byte) (*Catalog, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errs.InvalidArgument("catalog", "invalid JSON: %v", err)
	}
	compiled, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, errs.InvalidArgument("catalog", "schema validation failed: %v", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errs.InvalidArgument("catalog", "decode: %v", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse catalog schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// index builds the lookup maps and reports every structural problem at once.
func (c *Catalog) index() error {
	var problems []string

	c.words = make(map[string]Word, len(c.Words))
	for _, w := range c.Words {
		if _, dup := c.words[w.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate word %q", w.ID))
		}
		c.words[w.ID] = w
	}

	c.quizzes = make(map[string]assessment.Quiz, len(c.Quizzes))
	for _, q := range c.Quizzes {
		if _, dup := c.quizzes[q.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate quiz %q", q.ID))
		}
		c.quizzes[q.ID] = q
	}
	c.exams = make(map[string]assessment.Exam, len(c.Exams))
	for _, e := range c.Exams {
		if _, dup := c.exams[e.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate exam %q", e.ID))
		}
		c.exams[e.ID] = e
	}

	c.lessons = make(map[string]progression.Lesson, len(c.Lessons))
	c.lessonsByWord = make(map[string][]string)
	for i := range c.Lessons {
		l := &c.Lessons[i]
		sort.SliceStable(l.Blocks, func(a, b int) bool { return l.Blocks[a].Order < l.Blocks[b].Order })
		for j := range l.Blocks {
			l.Blocks[j].LessonID = l.ID
		}
		if _, dup := c.lessons[l.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate lesson %q", l.ID))
		}
		if err := progression.ValidateLesson(*l); err != nil {
			problems = append(problems, err.Error())
		}
		problems = append(problems, c.checkBlocks(*l)...)
		c.lessons[l.ID] = *l
	}

	seen := make(map[string]bool, len(c.Defs))
	for _, a := range c.Defs {
		if seen[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate achievement %q", a.ID))
		}
		seen[a.ID] = true
		if err := a.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return errs.InvalidArgument("catalog", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// checkBlocks reports dangling references from a lesson's blocks.
func (c *Catalog) checkBlocks(l progression.Lesson) []string {
	var problems []string
	for _, b := range l.Blocks {
		switch p := b.Payload.(type) {
		case *progression.VocabularyPayload:
			if len(p.WordIDs) == 0 {
				problems = append(problems, fmt.Sprintf("lesson %q block %q has no words", l.ID, b.ID))
			}
			for _, w := range lo.Uniq(p.WordIDs) {
				if _, ok := c.words[w]; !ok {
					problems = append(problems, fmt.Sprintf("lesson %q block %q references unknown word %q", l.ID, b.ID, w))
					continue
				}
				if !lo.Contains(c.lessonsByWord[w], l.ID) {
					c.lessonsByWord[w] = append(c.lessonsByWord[w], l.ID)
				}
			}
		case *progression.QuizPayload:
			if _, ok := c.quizzes[p.QuizID]; !ok {
				problems = append(problems, fmt.Sprintf("lesson %q block %q references unknown quiz %q", l.ID, b.ID, p.QuizID))
			}
		case *progression.ExamPayload:
			if _, ok := c.exams[p.ExamID]; !ok {
				problems = append(problems, fmt.Sprintf("lesson %q block %q references unknown exam %q", l.ID, b.ID, p.ExamID))
			}
		}
	}
	return problems
}

// Lesson returns the lesson with the given id, blocks sorted by order.
func (c *Catalog) Lesson(id string) (progression.Lesson, bool) {
	l, ok := c.lessons[id]
	return l, ok
}

func (c *Catalog) Quiz(id string) (assessment.Quiz, bool) {
	q, ok := c.quizzes[id]
	return q, ok
}

func (c *Catalog) Exam(id string) (assessment.Exam, bool) {
	e, ok := c.exams[id]
	return e, ok
}

func (c *Catalog) Word(id string) (Word, bool) {
	w, ok := c.words[id]
	return w, ok
}

func (c *Catalog) HasWord(id string) bool {
	_, ok := c.words[id]
	return ok
}

// Achievements returns every achievement definition.
func (c *Catalog) Achievements() []achievement.Achievement {
	return c.Defs
}

// LessonsWithWord returns the ids of lessons whose vocabulary blocks list the
// word, in catalog order.
func (c *Catalog) LessonsWithWord(wordID string) []string {
	return c.lessonsByWord[wordID]
}
