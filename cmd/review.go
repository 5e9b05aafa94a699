package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/spacedrep"
)

var reviewCmd = &cobra.Command{
	Use:   "review <word> <again|hard|good|easy>",
	Short: "Record a review of a word",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		response, err := spacedrep.ParseResponse(args[1])
		if err != nil {
			return err
		}
		latency, _ := cmd.Flags().GetDuration("latency")

		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			out, err := c.Learning.Review(ctx, c.Config.User, args[0], response, latency)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			p := out.Review.Progress
			fmt.Fprintf(w, "%s: mastery %d, next review in %d day(s) (ease %.2f)\n",
				p.WordID, p.MasteryLevel, p.IntervalDays, p.EaseFactor)
			if out.Review.Learned {
				fmt.Fprintf(w, "Learned %s!\n", p.WordID)
			}
			for _, comp := range out.Completions {
				fmt.Fprintf(w, "Completed block %s of %s\n", comp.Block.BlockID, comp.Block.LessonID)
				if comp.Unlocked != nil {
					fmt.Fprintf(w, "Unlocked block %s\n", comp.Unlocked.BlockID)
				}
				if comp.LessonFinished {
					fmt.Fprintf(w, "Finished lesson %s\n", comp.Block.LessonID)
				}
			}
			printUnlocks(cmd, out.Achievements.Unlocked, out.Achievements.Stats.TotalXP)
			return nil
		})
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List words due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			now := time.Now().UTC()
			words, err := c.Reviews.Due(ctx, c.Config.User, now, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(words) == 0 {
				fmt.Fprintln(w, "Nothing due.")
				return nil
			}
			fmt.Fprintf(w, "%-20s  %7s  %8s  %5s  %s\n", "Word", "Mastery", "Interval", "Ease", "Status")
			for i := range words {
				p := &words[i]
				fmt.Fprintf(w, "%-20s  %7d  %7dd  %5.2f  %s\n",
					p.WordID, p.MasteryLevel, p.IntervalDays, p.EaseFactor, p.Status(now))
			}
			fmt.Fprintf(w, "\n%d due\n", len(words))
			return nil
		})
	},
}

func init() {
	reviewCmd.Flags().Duration("latency", 0, "Time taken to answer (e.g. 2.5s)")
	dueCmd.Flags().Int("limit", 20, "Maximum number of words to list (0 for all)")
}
