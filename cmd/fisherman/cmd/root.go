package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haatos/fisherman/internal"
	"github.com/haatos/fisherman/internal/settings"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fisherman",
	Short: "Deploy repositories when their hosting service announces a push",
	Long: `fisherman listens for push webhooks, syncs the local checkout of the
pushed repository, rebuilds its binaries and restarts them under the
process supervisor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
			return fmt.Errorf("err reading %s: %w", internal.DotEnvPath, err)
		}
		return nil
	},
}

// Execute runs the command line. Running fisherman without a subcommand
// starts the daemon.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath, "config", "c", "",
		"configuration file (default $FISHERMAN_CONFIG or fisherman.yml)",
	)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Args = serveCmd.Args
}

// resolveConfigPath prefers a positional argument, then --config, then the
// environment.
func resolveConfigPath(args []string, s *settings.AppSettings) string {
	if len(args) > 0 {
		return args[0]
	}
	if configPath != "" {
		return configPath
	}
	return s.ConfigPath
}
