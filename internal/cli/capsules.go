package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"timinkAPI/internal/repository"
	"timinkAPI/internal/types/capsule"
	"timinkAPI/services"
)

func NewCapsulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capsules",
		Short: "Inspect time capsules",
	}
	cmd.AddCommand(newCapsulesDueCommand(rootOpts))
	return cmd
}

type dueCapsule struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	UnlockAt time.Time `json:"unlock_at"`
	Overdue  string    `json:"overdue"`
}

func newCapsulesDueCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List locked capsules past their unlock time whose members were not yet told",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := rootOpts.databaseURL()
			if err != nil {
				return err
			}

			pool, err := pgxpool.New(cmd.Context(), dsn)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			now := time.Now()
			ready, err := repository.NewCapsuleRepository(pool).ListReadyToNotify(cmd.Context(), now, limit)
			if err != nil {
				return err
			}
			return printDue(cmd.OutOrStdout(), rootOpts.Format, ready, now)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows to list")
	return cmd
}

func printDue(w io.Writer, format string, ready []capsule.Capsule, now time.Time) error {
	rows := make([]dueCapsule, 0, len(ready))
	for _, c := range ready {
		rows = append(rows, dueCapsule{
			ID:       c.ID.String(),
			Title:    c.Title,
			UnlockAt: c.UnlockAt,
			Overdue:  now.Sub(c.UnlockAt).Truncate(time.Minute).String(),
		})
	}

	return emit(w, format, rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "no capsules due")
			return
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s  %-30s  unlock_at=%s  overdue=%s\n", r.ID, r.Title, r.UnlockAt.Format(time.RFC3339), r.Overdue)
		}
	})
}

// countdownFor is shared with the countdown command so both report the same
// rule the API applies.
func countdownFor(unlockAt, now time.Time) capsule.Countdown {
	return services.ComputeTimeUntilUnlock(unlockAt, now)
}
