package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/app"
)

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			mine, err := c.Achievements.Achievements(ctx, c.Config.User)
			if err != nil {
				return err
			}
			byID := make(map[string]achievement.UserAchievement, len(mine))
			for _, ua := range mine {
				byID[ua.AchievementID] = ua
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-20s  %-24s  %6s  %8s  %s\n", "ID", "Name", "Points", "Progress", "Unlocked")
			fmt.Fprintln(w, strings.Repeat("─", 76))
			for _, a := range c.Catalog.Achievements() {
				ua := byID[a.ID]
				unlocked := ""
				if ua.IsCompleted && ua.UnlockedAt != nil {
					unlocked = ua.UnlockedAt.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%-20s  %-24s  %6d  %7d%%  %s\n", a.ID, a.Name, a.Points, ua.Progress, unlocked)
			}
			return nil
		})
	},
}

var achievementsEvalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate achievements against current statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			out, err := c.Achievements.Evaluate(ctx, c.Config.User)
			if err != nil {
				return err
			}
			if len(out.Unlocked) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No new achievements.")
				return nil
			}
			printUnlocks(cmd, out.Unlocked, out.Stats.TotalXP)
			return nil
		})
	},
}

var achievementsResyncCmd = &cobra.Command{
	Use:   "resync-xp [user]...",
	Short: "Restore total XP from completed achievements",
	Long:  "Recomputes XP from completed achievements for learners whose total is zero. With no arguments every learner is checked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			results, err := c.Achievements.ResyncXP(ctx, args...)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range results {
				verb := "kept"
				if r.Written {
					verb = "set"
				}
				fmt.Fprintf(w, "%-20s  %s %d XP (was %d)\n", r.UserID, verb, r.Sum, r.Previous)
			}
			return nil
		})
	},
}

func printUnlocks(cmd *cobra.Command, unlocked []achievement.Achievement, totalXP int64) {
	if len(unlocked) == 0 {
		return
	}
	w := cmd.OutOrStdout()
	for _, a := range unlocked {
		fmt.Fprintf(w, "Achievement unlocked: %s (+%d XP)\n", a.Name, a.Points)
	}
	fmt.Fprintf(w, "Total XP: %d\n", totalXP)
}

func init() {
	achievementsCmd.AddCommand(achievementsEvalCmd)
	achievementsCmd.AddCommand(achievementsResyncCmd)
}
