package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahul/perfwizard/internal/observability"
	"github.com/rahul/perfwizard/internal/store"
	"github.com/rahul/perfwizard/internal/wizard"
	"github.com/rahul/perfwizard/pkg/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "perfwizard",
	Short: "Performance Wizard - AI analysis of WordPress site performance",
	Long: `Performance Wizard collects Lighthouse, HTML, plugin and script data for a
WordPress site and walks an AI agent through a step-by-step performance analysis.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, runCmd, commandCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired engine shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *observability.Logger
	dispatcher *wizard.Dispatcher
	store      store.Store
}

func (a *app) Close() {
	a.store.Close()
	a.logger.Sync()
}

// setup loads the config and wires the dispatcher. A nil logOut logs to stderr.
func setup(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(verbose, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.WithLLMLog("logs/llm.jsonl", 10<<20)

	d, s, err := wizard.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, dispatcher: d, store: s}, nil
}
