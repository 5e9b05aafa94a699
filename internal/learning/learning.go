// Package learning runs the causal chain that follows learner activity: a
// review can raise mastery, which can complete vocabulary blocks, which
// changes statistics, which can unlock achievements and award XP. Each step
// commits before the next one reads.
package learning

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/progression"
	"github.com/abhisek/lingva/internal/spacedrep"
)

// Catalog is the slice of the course catalog the coordinator needs.
type Catalog interface {
	Lesson(id string) (progression.Lesson, bool)
	LessonsWithWord(wordID string) []string
}

// Coordinator wires the domain services together.
type Coordinator struct {
	reviews      *spacedrep.Service
	blocks       *progression.Service
	attempts     *assessment.Service
	achievements *achievement.Synchronizer
	catalog      Catalog
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewCoordinator(
	reviews *spacedrep.Service,
	blocks *progression.Service,
	attempts *assessment.Service,
	achievements *achievement.Synchronizer,
	catalog Catalog,
	log logrus.FieldLogger,
) *Coordinator {
	return &Coordinator{
		reviews:      reviews,
		blocks:       blocks,
		attempts:     attempts,
		achievements: achievements,
		catalog:      catalog,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for activity streaks.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// ReviewOutcome is everything one review caused.
type ReviewOutcome struct {
	Review       *spacedrep.ReviewResult
	Completions  []progression.Completion
	Stats        *achievement.Statistics
	Achievements *achievement.Outcome
}

// Review records a review and follows it through block completion,
// statistics and achievements.
func (c *Coordinator) Review(ctx context.Context, userID, wordID string, response spacedrep.Response, latency time.Duration) (*ReviewOutcome, error) {
	res, err := c.reviews.Review(ctx, userID, wordID, response, latency)
	if err != nil {
		return nil, err
	}
	out := &ReviewOutcome{Review: res}

	for _, lessonID := range c.catalog.LessonsWithWord(wordID) {
		completions, err := c.completeVocabulary(ctx, userID, lessonID)
		if err != nil {
			return out, err
		}
		out.Completions = append(out.Completions, completions...)
	}

	out.Stats, err = c.achievements.UpdateCounters(ctx, userID, func(st *achievement.Statistics) {
		st.TotalReviews++
		if res.Learned {
			st.TotalWordsLearned++
		}
		countCompletions(st, out.Completions)
		st.TouchActivity(c.now())
	})
	if err != nil {
		return out, err
	}

	out.Achievements, err = c.achievements.Evaluate(ctx, userID)
	return out, err
}

func (c *Coordinator) completeVocabulary(ctx context.Context, userID, lessonID string) ([]progression.Completion, error) {
	lesson, ok := c.catalog.Lesson(lessonID)
	if !ok {
		return nil, nil
	}
	var words []string
	for _, b := range lesson.Blocks {
		if v, ok := b.Payload.(*progression.VocabularyPayload); ok {
			words = append(words, v.WordIDs...)
		}
	}
	mastery, err := c.reviews.MasteryByWord(ctx, userID, lo.Uniq(words))
	if err != nil {
		return nil, err
	}
	return c.blocks.CompleteVocabularyBlocks(ctx, userID, lessonID, mastery)
}

// CompleteBlock completes a block whose completion is explicit, such as a
// grammar or media block. Vocabulary, quiz and exam blocks complete through
// mastery or passing attempts.
func (c *Coordinator) CompleteBlock(ctx context.Context, userID, lessonID, blockID string) (*progression.Completion, error) {
	b, err := c.block(lessonID, blockID)
	if err != nil {
		return nil, err
	}
	if trigger := progression.CompletionTrigger(b); trigger != progression.TriggerExplicit {
		return nil, errs.PreconditionFailed("block %s completes on %s", blockID, trigger)
	}
	completion, err := c.blocks.CompleteBlock(ctx, userID, lessonID, blockID)
	if err != nil {
		return nil, err
	}
	if err := c.afterActivity(ctx, userID, []progression.Completion{*completion}, nil); err != nil {
		return completion, err
	}
	return completion, nil
}

// afterActivity folds completions and extra counter changes into the
// learner's statistics and evaluates achievements.
func (c *Coordinator) afterActivity(ctx context.Context, userID string, completions []progression.Completion, extra func(*achievement.Statistics)) error {
	_, err := c.achievements.UpdateCounters(ctx, userID, func(st *achievement.Statistics) {
		countCompletions(st, completions)
		if extra != nil {
			extra(st)
		}
		st.TouchActivity(c.now())
	})
	if err != nil {
		return err
	}
	_, err = c.achievements.Evaluate(ctx, userID)
	return err
}

func countCompletions(st *achievement.Statistics, completions []progression.Completion) {
	for _, comp := range completions {
		if comp.AlreadyCompleted {
			continue
		}
		st.BlocksCompleted++
		if comp.LessonFinished {
			st.LessonsCompleted++
		}
	}
}

func (c *Coordinator) block(lessonID, blockID string) (progression.Block, error) {
	lesson, ok := c.catalog.Lesson(lessonID)
	if !ok {
		return progression.Block{}, errs.NotFound("lesson", lessonID)
	}
	b, ok := lesson.Block(blockID)
	if !ok {
		return progression.Block{}, errs.NotFound("block", blockID)
	}
	return b, nil
}
