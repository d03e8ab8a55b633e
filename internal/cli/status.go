package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/relayer/internal/core/config"
	"github.com/vietddude/relayer/internal/infra/storage"
	"github.com/vietddude/relayer/internal/infra/storage/file"
	"github.com/vietddude/relayer/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted relay checkpoint",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	cp, err := repo.Load(ctx)
	if err != nil {
		slog.Error("Failed to load checkpoint", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tLAST SCANNED\tPROCESSED IDS\tUPDATED")
	updated := "-"
	if cp.UpdatedAt > 0 {
		updated = time.Unix(cp.UpdatedAt, 0).UTC().Format(time.RFC3339)
	}
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
		cp.ChainID, cp.LastScannedBlock, len(cp.ProcessedIDs), updated)
	_ = w.Flush()
}

// openCheckpoints picks the same checkpoint store the relayer would use.
func openCheckpoints(ctx context.Context, cfg *config.AppConfig) (storage.CheckpointRepository, func(), error) {
	var genesis uint64
	if !cfg.Relayer.StartFromTip() {
		var err error
		genesis, err = cfg.Relayer.GenesisHeight()
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewCheckpointRepo(db, cfg.Source.ChainID, genesis, slog.Default())
		return repo, func() { _ = db.Close() }, nil
	}

	store := file.NewStore(cfg.Checkpoint.Path, cfg.Source.ChainID, genesis, slog.Default())
	return store, func() {}, nil
}
