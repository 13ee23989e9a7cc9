package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func NewCountdownCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "countdown <unlock-at>",
		Short: "Show the countdown a capsule unlocking at an RFC3339 time would display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unlockAt, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("unlock-at must be RFC3339: %w", err)
			}

			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--now must be RFC3339: %w", err)
				}
			}

			cd := countdownFor(unlockAt, now)
			return emit(cmd.OutOrStdout(), rootOpts.Format, cd, func(w io.Writer) {
				if cd.IsUnlockable {
					fmt.Fprintln(w, "unlockable now")
					return
				}
				fmt.Fprintf(w, "%dd %dh %dm\n", cd.Days, cd.Hours, cd.Minutes)
			})
		},
	}

	cmd.Flags().StringVar(&at, "now", "", "evaluate at this RFC3339 time instead of the wall clock")
	return cmd
}
