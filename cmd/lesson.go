package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/progression"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Work through lessons",
}

var lessonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the lessons in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-24s  %-32s  %s\n", "ID", "Title", "Blocks")
			fmt.Fprintln(w, strings.Repeat("─", 66))
			for _, l := range c.Catalog.Lessons {
				fmt.Fprintf(w, "%-24s  %-32s  %d\n", l.ID, l.Title, len(l.Blocks))
			}
			return nil
		})
	},
}

var lessonStartCmd = &cobra.Command{
	Use:   "start <lesson>",
	Short: "Start a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			blocks, err := c.Blocks.StartLesson(ctx, c.Config.User, args[0])
			if err != nil {
				return err
			}
			printBlocks(cmd.OutOrStdout(), c, args[0], blocks)
			return nil
		})
	},
}

var lessonShowCmd = &cobra.Command{
	Use:   "show <lesson>",
	Short: "Show block progress for a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			blocks, err := c.Blocks.Lesson(ctx, c.Config.User, args[0])
			if err != nil {
				return err
			}
			printBlocks(cmd.OutOrStdout(), c, args[0], blocks)
			return nil
		})
	},
}

var lessonCompleteCmd = &cobra.Command{
	Use:   "complete <lesson> <block>",
	Short: "Mark a grammar or media block as done",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			comp, err := c.Learning.CompleteBlock(ctx, c.Config.User, args[0], args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch {
			case comp.AlreadyCompleted:
				fmt.Fprintf(w, "Block %s was already completed\n", args[1])
			case comp.LessonFinished:
				fmt.Fprintf(w, "Finished lesson %s\n", args[0])
			case comp.Unlocked != nil:
				fmt.Fprintf(w, "Unlocked block %s\n", comp.Unlocked.BlockID)
			}
			return nil
		})
	},
}

func printBlocks(w io.Writer, c *app.Container, lessonID string, blocks []progression.UserBlockProgress) {
	lesson, _ := c.Catalog.Lesson(lessonID)
	fmt.Fprintf(w, "%s %s\n", lesson.ID, lesson.Title)
	fmt.Fprintf(w, "%3s  %-20s  %-10s  %-12s  %8s  %s\n", "#", "Block", "Kind", "Status", "Attempts", "Completes on")
	fmt.Fprintln(w, strings.Repeat("─", 78))
	for _, bp := range blocks {
		trigger := ""
		if b, ok := lesson.Block(bp.BlockID); ok {
			trigger = string(progression.CompletionTrigger(b))
		}
		fmt.Fprintf(w, "%3d  %-20s  %-10s  %-12s  %8d  %s\n",
			bp.BlockOrder, bp.BlockID, bp.BlockKind, bp.Status, bp.Attempts, trigger)
	}
}

func init() {
	lessonCmd.AddCommand(lessonListCmd)
	lessonCmd.AddCommand(lessonStartCmd)
	lessonCmd.AddCommand(lessonShowCmd)
	lessonCmd.AddCommand(lessonCompleteCmd)
}
