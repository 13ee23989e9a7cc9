package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"timinkAPI/internal/migrations"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := rootOpts.databaseURL()
			if err != nil {
				return err
			}
			if err := migrations.Up(cmd.Context(), dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the state of every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := rootOpts.databaseURL()
			if err != nil {
				return err
			}
			return migrations.Status(cmd.Context(), dsn)
		},
	})

	return cmd
}
