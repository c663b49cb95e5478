package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/core"
)

// newMetadataCmd creates the 'metadata' command.
func newMetadataCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "metadata [dataset-id]",
		Short: "Show the query parameters a dataset accepts",
		Long: `Fetch the query metadata of a dataset and print it as JSON.

The dataset id is taken from the argument, --dataset, or the config file.

Example:
  hdaget metadata EO:EUM:DAT:SENTINEL-3:SR_2_WAT___`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.overrides.DatasetID = args[0]
			}
			cfg, err := loadConfig(flags.overrides)
			if err != nil {
				return err
			}
			if err := cfg.ValidateForQuery(); err != nil {
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
			if err := engine.EnsureTermsAccepted(cmd.Context(), s); err != nil {
				return err
			}
			raw, err := engine.QueryMetadata(cmd.Context(), s)
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("broker returned invalid metadata: %w", err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVarP(&flags.overrides.DatasetID, "dataset", "d", "", "Dataset id")
	cmd.Flags().StringVarP(&flags.overrides.Username, "username", "u", "", "Broker username")
	return cmd
}
