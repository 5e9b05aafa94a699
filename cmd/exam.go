package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/errs"
)

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Take timed exams",
}

var examStartCmd = &cobra.Command{
	Use:   "start <lesson> <block>",
	Short: "Start the exam of a lesson block",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := c.Learning.StartBlockExam(ctx, c.Config.User, args[0], args[1])
			if err != nil {
				return err
			}
			return printExam(cmd.OutOrStdout(), c, a, true)
		})
	},
}

var examShowCmd = &cobra.Command{
	Use:   "show <attempt>",
	Short: "Show the state of an exam attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := c.Attempts.ExamAttempt(ctx, args[0])
			if err != nil {
				return err
			}
			return printExam(cmd.OutOrStdout(), c, a, false)
		})
	},
}

var examAnswerCmd = &cobra.Command{
	Use:   "answer <attempt> <section> <question=response>...",
	Short: "Save draft answers for the open section",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		responses, err := parseResponses(args[2:])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := c.Attempts.SaveSectionAnswers(ctx, args[0], args[1], responses)
			if err != nil {
				return err
			}
			printSectionTime(cmd.OutOrStdout(), a, args[1])
			return nil
		})
	},
}

var examSubmitCmd = &cobra.Command{
	Use:   "submit <attempt> <section> [question=response]...",
	Short: "Submit a section and open the next one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		responses, err := parseResponses(args[2:])
		if err != nil {
			return err
		}
		spent, _ := cmd.Flags().GetDuration("time")
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			if !cmd.Flags().Changed("time") {
				cur, err := c.Attempts.ExamAttempt(ctx, args[0])
				if err != nil {
					return err
				}
				spent = elapsed(cur, args[1], time.Now().UTC())
			}
			a, more, err := c.Attempts.SubmitSection(ctx, args[0], args[1], responses, spent)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, s := range a.Sections {
				if s.SectionID == args[1] {
					fmt.Fprintf(w, "Section %s: %.1f/%.1f (%.1f%%)\n", s.SectionID, s.Score, s.MaxScore, s.Percentage)
				}
			}
			if more {
				return nil
			}
			out, err := c.Learning.CompleteExam(ctx, a.ID)
			if out == nil {
				return err
			}
			printExamResult(w, out.Attempt)
			printCompletion(w, out.Block)
			return err
		})
	},
}

var examCompleteCmd = &cobra.Command{
	Use:   "complete <attempt>",
	Short: "Score an exam whose sections are all submitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			out, err := c.Learning.CompleteExam(ctx, args[0])
			if out == nil {
				return err
			}
			w := cmd.OutOrStdout()
			printExamResult(w, out.Attempt)
			printCompletion(w, out.Block)
			return err
		})
	},
}

var examAbandonCmd = &cobra.Command{
	Use:   "abandon <attempt>",
	Short: "Abandon an exam attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			if _, err := c.Attempts.AbandonExam(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Abandoned %s\n", args[0])
			return nil
		})
	},
}

// parseResponses turns question=response arguments into a map.
func parseResponses(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		q, resp, ok := strings.Cut(arg, "=")
		if !ok || q == "" {
			return nil, errs.InvalidArgument("response", "expected question=response, got %q", arg)
		}
		out[q] = resp
	}
	return out, nil
}

// elapsed is the time since the section opened.
func elapsed(a *assessment.ExamAttempt, sectionID string, now time.Time) time.Duration {
	for _, s := range a.Sections {
		if s.SectionID == sectionID && s.OpenedAt != nil {
			return max(now.Sub(*s.OpenedAt), 0)
		}
	}
	return 0
}

func printExam(w io.Writer, c *app.Container, a *assessment.ExamAttempt, questions bool) error {
	exam, ok := c.Catalog.Exam(a.ExamID)
	if !ok {
		return fmt.Errorf("exam %s not in catalog", a.ExamID)
	}
	now := time.Now().UTC()
	fmt.Fprintf(w, "Attempt %s: %s [%s]\n", a.ID, exam.Title, a.Status)
	fmt.Fprintf(w, "%-16s  %-12s  %10s  %10s\n", "Section", "Status", "Score", "Remaining")
	fmt.Fprintln(w, strings.Repeat("─", 54))
	for _, s := range a.Sections {
		status := string(s.Status)
		if s.OpenedAt == nil {
			status = "waiting"
		}
		fmt.Fprintf(w, "%-16s  %-12s  %4.1f/%-5.1f  %10s\n",
			s.SectionID, status, s.Score, s.MaxScore, s.Remaining(now).Round(time.Second))
	}
	if !questions {
		return nil
	}
	if i, open := a.CurrentSection(); open {
		sec, _ := exam.Section(a.Sections[i].SectionID)
		fmt.Fprintf(w, "\n%s\n", sec.Title)
		printQuestions(w, sec.Questions)
	}
	return nil
}

func printSectionTime(w io.Writer, a *assessment.ExamAttempt, sectionID string) {
	now := time.Now().UTC()
	for _, s := range a.Sections {
		if s.SectionID != sectionID {
			continue
		}
		fmt.Fprintf(w, "Saved %d answer(s) for %s", len(s.Answers), s.SectionID)
		if s.TimeLimit > 0 {
			fmt.Fprintf(w, ", %s left", s.Remaining(now).Round(time.Second))
		}
		fmt.Fprintln(w)
	}
}

func printExamResult(w io.Writer, a *assessment.ExamAttempt) {
	fmt.Fprintf(w, "Exam %.1f/%.1f (%.1f%%) in %s\n",
		a.TotalScore, a.MaxScore, a.TotalPercentage, a.TotalTimeSpent.Round(time.Second))
	printVerdict(w, a.IsPassed(), a.PassingThreshold)
}

func init() {
	examSubmitCmd.Flags().Duration("time", 0, "Time spent on the section (default: elapsed since it opened)")

	examCmd.AddCommand(examStartCmd)
	examCmd.AddCommand(examShowCmd)
	examCmd.AddCommand(examAnswerCmd)
	examCmd.AddCommand(examSubmitCmd)
	examCmd.AddCommand(examCompleteCmd)
	examCmd.AddCommand(examAbandonCmd)
}
