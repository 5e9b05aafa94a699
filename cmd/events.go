package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
	"github.com/abhisek/lingva/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the domain event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("type")
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all-users")

		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			opts := store.QueryOpts{Type: eventType, After: after, Limit: limit}
			if !all {
				opts.UserID = c.Config.User
			}
			events, err := c.Store.Events().QueryEvents(ctx, opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, ev := range events {
				ts := ""
				if t := ev.Timestamp.Ptr(); t != nil {
					ts = t.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%6d  %s  %-22s  %-12s  %s\n", ev.Sequence, ts, ev.Type, ev.UserID, ev.Payload)
			}
			return nil
		})
	},
}

func init() {
	eventsCmd.Flags().String("type", "", "Only show events of this type")
	eventsCmd.Flags().Int64("after", 0, "Only show events after this sequence number")
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events (0 for all)")
	eventsCmd.Flags().Bool("all-users", false, "Show events of every learner")
}
