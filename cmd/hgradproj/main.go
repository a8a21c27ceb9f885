// Command hgradproj projects polynomial fields onto nodal H(grad) bases and
// reports how well the result reproduces them.
package main

import (
	"fmt"
	"os"

	"github.com/notargets/HGradProjection/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hgradproj",
	Short: "Hierarchical H(grad) projection on simplex cell batches",
	Long: `hgradproj fits H(grad) basis coefficients to a target field one
subcell dimension at a time: vertices, then edges, faces and the interior.

Settings come from --config, then HGRAD_* environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		applyFlags(cmd)
		if err = cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = cfg.NewLogger()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.AddCommand(projectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
