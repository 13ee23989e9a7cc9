package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"timinkAPI/internal/config"
	"timinkAPI/middleware"
)

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <clerk-user-id>",
		Short: "Mint a bearer token for AUTH_MODE=local",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.AuthMode != config.AuthModeLocal || cfg.LocalJWTSecret == "" {
				return fmt.Errorf("token minting needs AUTH_MODE=local and LOCAL_JWT_SECRET")
			}

			token, err := middleware.IssueLocalToken([]byte(cfg.LocalJWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, map[string]string{"token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
