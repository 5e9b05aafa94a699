package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/progression"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take quizzes",
}

var quizStartCmd = &cobra.Command{
	Use:   "start <lesson> <block>",
	Short: "Start the quiz of a lesson block",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := c.Learning.StartBlockQuiz(ctx, c.Config.User, args[0], args[1])
			if err != nil {
				return err
			}
			return printQuizQuestions(cmd.OutOrStdout(), c, a)
		})
	},
}

var quizPracticeCmd = &cobra.Command{
	Use:   "practice <quiz>",
	Short: "Start a quiz outside of any lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := c.Attempts.StartQuiz(ctx, c.Config.User, args[0], assessment.BlockRef{})
			if err != nil {
				return err
			}
			return printQuizQuestions(cmd.OutOrStdout(), c, a)
		})
	},
}

var quizAnswerCmd = &cobra.Command{
	Use:   "answer <attempt> <question> <response>",
	Short: "Answer one quiz question",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, ans, err := c.Attempts.SubmitAnswer(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if ans.Correct {
				fmt.Fprintf(w, "Correct (+%.1f)\n", ans.Points)
			} else {
				fmt.Fprintln(w, "Incorrect")
			}
			fmt.Fprintf(w, "%d/%d answered\n", len(a.Answers), a.TotalQuestions)
			return nil
		})
	},
}

var quizCompleteCmd = &cobra.Command{
	Use:   "complete <attempt>",
	Short: "Score a quiz attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			// out is set when only the block step failed.
			out, err := c.Learning.CompleteQuiz(ctx, args[0])
			if out == nil {
				return err
			}
			a := out.Attempt
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Score %.1f/%.1f (%.1f%%), %d of %d correct\n",
				a.Score, a.MaxScore, a.Percentage, a.CorrectAnswers, a.TotalQuestions)
			printVerdict(w, a.IsPassed(), a.PassingThreshold)
			printCompletion(w, out.Block)
			return err
		})
	},
}

var quizAbandonCmd = &cobra.Command{
	Use:   "abandon <attempt>",
	Short: "Abandon a quiz attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			if _, err := c.Attempts.AbandonQuiz(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Abandoned %s\n", args[0])
			return nil
		})
	},
}

func printQuizQuestions(w io.Writer, c *app.Container, a *assessment.QuizAttempt) error {
	quiz, ok := c.Catalog.Quiz(a.QuizID)
	if !ok {
		return fmt.Errorf("quiz %s not in catalog", a.QuizID)
	}
	fmt.Fprintf(w, "Attempt %s: %s (pass at %.0f%%)\n\n", a.ID, quiz.Title, a.PassingThreshold)
	printQuestions(w, quiz.Questions)
	return nil
}

func printQuestions(w io.Writer, qs []assessment.Question) {
	for _, q := range qs {
		fmt.Fprintf(w, "[%s] %s\n", q.ID, q.Prompt)
		for i, choice := range q.Options {
			fmt.Fprintf(w, "    %d) %s\n", i+1, choice)
		}
	}
}

func printVerdict(w io.Writer, passed bool, threshold float64) {
	if passed {
		fmt.Fprintln(w, "Passed")
		return
	}
	fmt.Fprintf(w, "Not passed (needs %.0f%%)\n", threshold)
}

func printCompletion(w io.Writer, comp *progression.Completion) {
	if comp == nil || comp.AlreadyCompleted {
		return
	}
	fmt.Fprintf(w, "Completed block %s\n", comp.Block.BlockID)
	if comp.Unlocked != nil {
		fmt.Fprintf(w, "Unlocked block %s\n", comp.Unlocked.BlockID)
	}
	if comp.LessonFinished {
		fmt.Fprintf(w, "Finished lesson %s\n", comp.Block.LessonID)
	}
}

func init() {
	quizCmd.AddCommand(quizStartCmd)
	quizCmd.AddCommand(quizPracticeCmd)
	quizCmd.AddCommand(quizAnswerCmd)
	quizCmd.AddCommand(quizCompleteCmd)
	quizCmd.AddCommand(quizAbandonCmd)
}
