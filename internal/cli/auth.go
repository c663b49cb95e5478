package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/core"
)

// newAuthCmd creates the 'auth' command group.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Check broker credentials",
		Long: `Authentication commands.

Commands:
  token  - Exchange the api key for an access token
  terms  - Ensure the broker's terms and conditions are accepted`,
	}
	authCmd.AddCommand(newAuthTokenCmd())
	authCmd.AddCommand(newAuthTermsCmd())
	return authCmd
}

func newAuthTokenCmd() *cobra.Command {
	var (
		flags runFlags
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token",
		Long: `Exchange the configured credentials for an access token.

The token is masked unless --raw is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.overrides)
			if err != nil {
				return err
			}
			engine, err := core.NewEngine(cfg, core.WithLogger(GetLogger()))
			if err != nil {
				return err
			}
			s := core.NewSession(cfg)
			if err := engine.GetToken(cmd.Context(), s); err != nil {
				return err
			}
			if raw {
				fmt.Println(s.Token)
				return nil
			}
			fmt.Printf("✓ Token obtained from %s: %s\n", s.BrokerURL, maskSecret(s.Token))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.overrides.Username, "username", "u", "", "Broker username")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the token itself")
	return cmd
}

func newAuthTermsCmd() *cobra.Command {
	var (
		flags   runFlags
		termsID string
	)
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Accept the broker's terms and conditions",
		Long: `Check whether the terms identified by --terms (default from config) are
accepted for this account and accept them if they are not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.overrides)
			if err != nil {
				return err
			}
			if termsID != "" {
				cfg.TermsID = termsID
			}
			engine, err := core.NewEngine(cfg, core.WithLogger(GetLogger()))
			if err != nil {
				return err
			}
			s := core.NewSession(cfg)
			if err := engine.GetToken(cmd.Context(), s); err != nil {
				return err
			}
			if err := engine.EnsureTermsAccepted(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Printf("✓ Terms %s accepted\n", cfg.TermsID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.overrides.Username, "username", "u", "", "Broker username")
	cmd.Flags().StringVar(&termsID, "terms", "", "Terms identifier (default "+constants.DefaultTermsID+")")
	return cmd
}
