package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
)

var runFlags struct {
	delimiter     string
	noHeader      bool
	columns       []int
	clusters      int
	maxClusters   int
	excludedWords []string
	seed          int64
}

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Cluster a response file",
	Long: `Runs the clustering pipeline against the given input file and
prints progress until the run completes. The result is saved and
selected for the query commands.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.delimiter, "delimiter", ",", "column delimiter")
	runCmd.Flags().BoolVar(&runFlags.noHeader, "no-header", false, "treat the first row as data")
	runCmd.Flags().IntSliceVar(&runFlags.columns, "columns", []int{0}, "zero-based response column indices")
	runCmd.Flags().IntVar(&runFlags.clusters, "clusters", 0, "exact cluster count (0 selects automatic)")
	runCmd.Flags().IntVar(&runFlags.maxClusters, "max-clusters", 10, "cluster count bound for automatic selection")
	runCmd.Flags().StringSliceVar(&runFlags.excludedWords, "exclude", nil, "words filtered from responses")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 42, "random seed")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if dispatcher == nil || broker == nil {
		return errors.New("clustering services not configured")
	}

	ctx := context.Background()

	// Subscribe before launching so no progress event is missed.
	progress := broker.Subscribe(domain.ChannelClusterProgress)
	defer progress.Cancel()
	errorSub := broker.Subscribe(domain.ChannelError)
	defer errorSub.Cancel()

	if err := dispatcher.SetFilePath(ctx, args[0]); err != nil {
		return err
	}
	if err := dispatcher.SetFileSettings(ctx, domain.FileSettings{
		Delimiter:       runFlags.delimiter,
		HasHeader:       !runFlags.noHeader,
		SelectedColumns: runFlags.columns,
	}); err != nil {
		return err
	}

	settings := domain.DefaultAlgorithmSettings()
	settings.Seed = runFlags.seed
	if runFlags.excludedWords != nil {
		settings.ExcludedWords = runFlags.excludedWords
	}
	if runFlags.clusters > 0 {
		settings.Method = domain.ClusterCount{Method: domain.ClusterCountManual, Exact: runFlags.clusters}
	} else {
		settings.Method = domain.ClusterCount{Method: domain.ClusterCountAuto, MaxClusters: runFlags.maxClusters}
	}
	if err := dispatcher.SetAlgorithmSettings(ctx, settings); err != nil {
		return err
	}

	start := time.Now()
	if err := dispatcher.RunClustering(ctx); err != nil {
		return err
	}

	if err := printProgress(cmd, progress, errorSub); err != nil {
		return err
	}

	cmd.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// printProgress renders progress events until the run reaches a
// terminal state.
func printProgress(cmd *cobra.Command, progress, errorSub driving.Subscription) error {
	for {
		select {
		case ev, ok := <-progress.Events():
			if !ok {
				return errors.New("progress stream closed")
			}
			p, ok := ev.Payload.(domain.ProgressEvent)
			if !ok {
				continue
			}
			cmd.Printf("  [%s] %s\n", p.Status, p.Step)
			if p.Step == domain.StepSave && p.Status == domain.StatusComplete {
				return nil
			}

		case ev, ok := <-errorSub.Events():
			if !ok {
				return errors.New("error stream closed")
			}
			if e, ok := ev.Payload.(domain.ErrorMessage); ok {
				return fmt.Errorf("run failed: %s", e.Error)
			}
		}
	}
}
