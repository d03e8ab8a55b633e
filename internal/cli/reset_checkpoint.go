package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vietddude/relayer/internal/core/config"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [block_height]",
	Short: "Force the relay checkpoint to a given block height",
	Long:  `Overwrites the persisted checkpoint, discarding the processed-event set. Blocks between the new height and the old one will be re-scanned; events the dedup set no longer remembers will be relayed again.`,
	Args:  cobra.ExactArgs(1),
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, cleanup, err := openCheckpoints(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := repo.Reset(ctx, height); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Checkpoint for chain %s reset to block %d\n", cfg.Source.ChainID, height)
}
