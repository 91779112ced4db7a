package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haatos/fisherman/internal"
	"github.com/haatos/fisherman/internal/logging"
	"github.com/haatos/fisherman/internal/settings"
)

var checkCmd = &cobra.Command{
	Use:   "check [config]",
	Short: "Validate the configuration file and report likely mistakes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings.NewSettings()
		path := resolveConfigPath(args, s)

		log, err := logging.New(s.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		config, err := internal.LoadConfiguration(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		warnings := config.CheckForPotentialMistakes(log)
		for _, w := range warnings {
			fmt.Fprintf(out, "warning: %s\n", w.Message)
		}
		fmt.Fprintf(out, "%s: %d repositories, %d warnings\n", path, len(config.Specific), len(warnings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
