// Railcontrol Core - model railway automode engine
//
// This is the main entry point for the railcontrol daemon and its
// maintenance commands. The daemon keeps the layout (tracks, streets,
// devices, feedbacks) and every locomotive in memory, drives trains
// between tracks in automode and exposes the whole thing over a REST and
// WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/railcontrol-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "railcontrol",
		Short:         "Railcontrol Core - model railway automode engine",
		Long:          "Railcontrol drives model trains between tracks, reserving streets and switching devices on the way.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if flags.envFile == "" {
				return nil
			}
			if err := godotenv.Load(flags.envFile); err != nil {
				return fmt.Errorf("loading env file: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file (default $RAILCONTROL_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "load environment variables from this file before reading the config")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newLayoutCmd(flags))
	cmd.AddCommand(newHashPasswordCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "railcontrol %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// An explicit flag wins, then RAILCONTROL_CONFIG, then the default.
func (f *globalFlags) getConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	if path := os.Getenv("RAILCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	cancel()
	os.Exit(code)
}
