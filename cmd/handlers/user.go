package handlers

import (
	"fmt"

	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/logger"
	"nook/internal/store"

	"github.com/spf13/cobra"
)

// NewUserCmd creates the user management command
func NewUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  `Inspect and modify user accounts: subscription tier and admin access.`,
	}

	userCmd.AddCommand(newUserPromoteCmd())
	userCmd.AddCommand(newUserTierCmd())

	return userCmd
}

func newUserPromoteCmd() *cobra.Command {
	var revoke bool

	promoteCmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant admin access to a user",
		Long: `Grant admin access to a user, creating the account if needed.

Admin users can call the admin API endpoints, such as flushing the
content cache. With --revoke the admin flag is removed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserPromote(args[0], revoke)
		},
	}

	promoteCmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke admin access instead of granting it")
	return promoteCmd
}

func newUserTierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tier <email> <seeker|insider|patron>",
		Short: "Set a user's subscription tier",
		Long: `Set a user's subscription tier directly, bypassing payment
verification. The account is created if it does not exist.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserTier(args[0], args[1])
		},
	}
}

func runUserPromote(email string, revoke bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	user, err := st.CreateOrGetUser(email)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := st.SetUserAdmin(user.ID, !revoke); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if revoke {
		fmt.Printf("Revoked admin access for %s\n", email)
	} else {
		fmt.Printf("Granted admin access to %s\n", email)
	}
	return nil
}

func runUserTier(email, tier string) error {
	switch core.Tier(tier) {
	case core.TierSeeker, core.TierInsider, core.TierPatron:
	default:
		return fmt.Errorf("unknown tier %q (expected seeker, insider, or patron)", tier)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	user, err := st.CreateOrGetUser(email)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := st.UpdateUserTier(user.ID, core.Tier(tier)); err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	fmt.Printf("Set %s to tier %s\n", email, tier)
	return nil
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logger.Error("Failed to close store", err)
	}
}
