package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingva/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire exam sections whose time ran out",
	Long:  "Force-submits overdue exam sections on the configured interval until interrupted. With --once a single pass runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		return withApp(cmd, func(ctx context.Context, c *app.Container) error {
			if once {
				n := c.Sweeper.RunOnce(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d overdue attempt(s)\n", n)
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := c.Sweeper.Start(ctx); err != nil {
				return err
			}
			defer c.Sweeper.Stop()
			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	sweepCmd.Flags().Bool("once", false, "Run a single sweep and exit")
}
