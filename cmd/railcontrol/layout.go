package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/logging"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/manager"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

func newLayoutCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Validate and import layout seed files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a layout seed without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkLayout(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Add the objects of a layout seed to the database",
		Long: `Loads the stored layout, adds every object of the seed and writes the
result back. Objects whose IDs already exist are rejected and nothing is
written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importLayout(cmd.Context(), cmd.OutOrStdout(), flags.getConfigPath(), args[0])
		},
	})

	return cmd
}

// checkLayout imports a seed into a throwaway manager backed by memory.
func checkLayout(ctx context.Context, out io.Writer, seedPath string) error {
	seed, err := manager.LoadSeed(seedPath)
	if err != nil {
		return err
	}
	hw := hardware.NewHandler()
	defer hw.Close()

	mgr := manager.New(layout.New(hw), hw, storage.NewMemoryRepository(), manager.Options{})
	if err := mgr.Import(seed); err != nil {
		return fmt.Errorf("%s: %w", seedPath, err)
	}
	printLayoutSummary(out, mgr)
	return mgr.Close(ctx)
}

// importLayout merges a seed into the configured database.
func importLayout(ctx context.Context, out io.Writer, configPath, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	seed, err := manager.LoadSeed(seedPath)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	hw := hardware.NewHandler()
	defer hw.Close()

	mgr, err := newManager(cfg.Automode, hw, storage.NewSQLiteRepository(db.DB), log)
	if err != nil {
		return err
	}
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	if err := mgr.Import(seed); err != nil {
		return fmt.Errorf("importing %s: %w", seedPath, err)
	}
	if err := mgr.SaveAll(ctx); err != nil {
		return fmt.Errorf("saving layout: %w", err)
	}
	printLayoutSummary(out, mgr)
	return mgr.Close(ctx)
}

func printLayoutSummary(out io.Writer, mgr *manager.Manager) {
	l := mgr.Layout()
	fmt.Fprintf(out, "tracks: %d\nstreets: %d\ndevices: %d\nfeedbacks: %d\nlocos: %d\n",
		len(l.Tracks()), len(l.Streets()), len(l.Devices()), len(l.Feedbacks()), len(mgr.Locos()))
}
