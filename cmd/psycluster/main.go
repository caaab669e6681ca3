package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ReylordDev/psycluster/internal/adapters/driven/config/file"
	"github.com/ReylordDev/psycluster/internal/adapters/driven/storage/sqlite"
	"github.com/ReylordDev/psycluster/internal/adapters/driven/worker"
	"github.com/ReylordDev/psycluster/internal/adapters/driving/cli"
	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
	"github.com/ReylordDev/psycluster/internal/core/services"
)

const defaultWorkerCommand = "psycluster-worker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore(os.Getenv("PSYCLUSTER_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("opening configuration: %w", err)
	}

	dataDir := configStore.GetString(driven.ConfigKeyDataDir)
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".psycluster", "data")
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	command := configStore.GetString(driven.ConfigKeyWorkerCommand)
	if command == "" {
		command = defaultWorkerCommand
	}
	workerProcess := worker.NewProcess(command, configStore.GetStringSlice(driven.ConfigKeyWorkerArgs)...)

	pubsub := services.NewPubSub()
	defer pubsub.Close()

	dispatcher := services.NewCommandDispatcher(
		store.RunStore(),
		workerProcess,
		pubsub,
		services.NewAppState(),
		services.NewProgressTracker(),
		dataDir,
	)

	cli.SetServices(&cli.Services{
		Dispatcher: dispatcher,
		Broker:     pubsub,
		Config:     configStore,
	})

	return cli.Execute()
}
