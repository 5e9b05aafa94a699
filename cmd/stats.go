package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			st, err := c.Achievements.Statistics(ctx, c.Config.User)
			if err != nil {
				return err
			}
			weekly, monthly := st.PeriodXP(time.Now().UTC())

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Learner:           %s\n", c.Config.User)
			fmt.Fprintf(w, "XP:                %d total, %d this week, %d this month\n", st.TotalXP, weekly, monthly)
			fmt.Fprintf(w, "Streak:            %d day(s), longest %d\n", st.CurrentStreak, st.LongestStreak)
			fmt.Fprintf(w, "Reviews:           %d\n", st.TotalReviews)
			fmt.Fprintf(w, "Words learned:     %d\n", st.TotalWordsLearned)
			fmt.Fprintf(w, "Quizzes passed:    %d\n", st.QuizzesPassed)
			fmt.Fprintf(w, "Exams passed:      %d\n", st.ExamsPassed)
			fmt.Fprintf(w, "Blocks completed:  %d\n", st.BlocksCompleted)
			fmt.Fprintf(w, "Lessons completed: %d\n", st.LessonsCompleted)
			if st.LastActivityAt != nil {
				fmt.Fprintf(w, "Last activity:     %s\n", st.LastActivityAt.Format(time.RFC1123))
			}
			return nil
		})
	},
}
