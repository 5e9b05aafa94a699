package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/abhisek/lingva/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export learner progress as an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("output")
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			d, err := collectReport(ctx, c)
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.Write(f, d); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		})
	},
}

func collectReport(ctx context.Context, c *app.Container) (report.Data, error) {
	user := c.Config.User
	d := report.Data{UserID: user, GeneratedAt: time.Now().UTC()}

	stats, err := c.Achievements.Statistics(ctx, user)
	if err != nil {
		return d, err
	}
	d.Stats = *stats

	if d.Words, err = c.Reviews.All(ctx, user); err != nil {
		return d, err
	}
	for _, l := range c.Catalog.Lessons {
		blocks, err := c.Blocks.Lesson(ctx, user, l.ID)
		if errs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return d, err
		}
		d.Blocks = append(d.Blocks, blocks...)
	}
	if d.Achievements, err = c.Achievements.Achievements(ctx, user); err != nil {
		return d, err
	}
	d.Names = lo.Associate(c.Catalog.Achievements(), func(a achievement.Achievement) (string, string) {
		return a.ID, a.Name
	})
	return d, nil
}

func init() {
	reportCmd.Flags().StringP("output", "o", "lingva-report.xlsx", "Output file")
}
