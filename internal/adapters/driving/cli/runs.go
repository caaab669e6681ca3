package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage saved runs",
	RunE:  runRunsList,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE:  runRunsList,
}

var runsSelectCmd = &cobra.Command{
	Use:   "select <run-id>",
	Short: "Select the run the query commands operate on",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsSelect,
}

var runsRenameCmd = &cobra.Command{
	Use:   "rename <run-id> <name>",
	Short: "Rename a run",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsRename,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsSelectCmd)
	runsCmd.AddCommand(runsRenameCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	if dispatcher == nil {
		return errors.New("run service not configured")
	}

	msg, err := dispatcher.GetRuns(context.Background())
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(msg.Runs) == 0 {
		cmd.Println("No runs found.")
		return nil
	}

	for _, run := range msg.Runs {
		cmd.Printf("%s  %s  %s  %s\n",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04"), run.Name, run.FilePath)
	}
	return nil
}

func runRunsSelect(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("run service not configured")
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	if err := dispatcher.SetRunID(context.Background(), id); err != nil {
		return err
	}
	cmd.Printf("Selected run %s.\n", id)
	return nil
}

func runRunsRename(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("run service not configured")
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	if err := dispatcher.UpdateRunName(context.Background(), id, args[1]); err != nil {
		return err
	}
	cmd.Printf("Renamed run %s to %q.\n", id, args[1])
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("run service not configured")
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	if err := dispatcher.DeleteRun(context.Background(), id); err != nil {
		return err
	}
	cmd.Printf("Deleted run %s.\n", id)
	return nil
}
