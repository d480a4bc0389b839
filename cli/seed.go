package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/princinho/sahoassist/utils"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the admin account from ADMIN_EMAIL and ADMIN_PASSWORD",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		st, _, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close(context.Background())
		return utils.SeedAdminUser(ctx, st.Users(), cfg.AdminEmail, cfg.AdminPassword, logger)
	},
}
