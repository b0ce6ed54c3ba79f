package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zimmed/zimmed-core/internal/config"
	"github.com/zimmed/zimmed-core/internal/flags"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the zcore config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented default config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := localConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return err
	},
}

var configFlagCmd = &cobra.Command{
	Use:   "flag <name> <true|false>",
	Short: "Set a feature flag in the active config file",
	Long: "Set a feature flag, keeping the rest of the file intact.\n\nKnown flags:\n" + flags.Help(),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := flags.CheckName(args[0]); err != nil {
			return err
		}
		value, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("flag value: %w", err)
		}
		path := viper.ConfigFileUsed()
		if path == "" {
			path = localConfigPath
		}

		updated := flags.New(cfg.Flags).With(args[0], value).All()
		if err := config.SaveFlags(path, updated); err != nil {
			return err
		}
		cfg.Flags = updated
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %t\n", path, args[0], value)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configFlagCmd)
	rootCmd.AddCommand(configCmd)
}
