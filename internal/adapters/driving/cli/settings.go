package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the persisted configuration: the data directory,
the gateway listen address, and the worker command line.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// knownConfigKeys are the settings shown even when unset.
var knownConfigKeys = []string{
	driven.ConfigKeyDataDir,
	driven.ConfigKeyListenAddr,
	driven.ConfigKeyWorkerCommand,
	driven.ConfigKeyWorkerArgs,
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("settings service not configured")
	}

	keys := append([]string(nil), knownConfigKeys...)
	sort.Strings(keys)

	for _, key := range keys {
		if value, ok := configStore.Get(key); ok {
			cmd.Printf("%s = %v\n", key, value)
		} else {
			cmd.Printf("%s = (not set)\n", key)
		}
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("settings service not configured")
	}

	if err := configStore.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s.\n", args[0])
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("settings service not configured")
	}

	if err := configStore.Delete(args[0]); err != nil {
		return err
	}
	cmd.Printf("Unset %s.\n", args[0])
	return nil
}
