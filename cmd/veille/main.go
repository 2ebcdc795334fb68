// Package main is the entry point for the veille CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/veille/internal/analyze"
	"github.com/dgallion1/veille/internal/config"
	"github.com/dgallion1/veille/internal/fiche"
	"github.com/dgallion1/veille/internal/fsutil"
	"github.com/dgallion1/veille/internal/index"
	"github.com/dgallion1/veille/internal/pipeline"
	"github.com/dgallion1/veille/internal/scrape"
	"github.com/dgallion1/veille/internal/tracker"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "veille",
	Short: "Turn captured links into summarized fiches",
	Long: `veille reads capture requests from the tracker's pending issues (or from the
local capture listener), extracts the linked content, asks an LLM for a title,
summary, tags and category, and publishes one Markdown fiche per request plus a
chronological index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		if err := v.BindPFlag("CONTENT_ROOT", cmd.Flags().Lookup("content-root")); err != nil {
			return err
		}
		cfg = config.Load(v)
		logger = newLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./veille.yaml)")
	rootCmd.PersistentFlags().String("content-root", "", "directory holding fiches/ and the index (default: docs)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of veille",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("veille %s\n", version)
		},
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func newIndexBuilder() *index.Builder {
	return index.NewBuilder(cfg.ContentRoot, cfg.IndexFile, cfg.IndexTitle, logger)
}

func newFicheBuilder() *fiche.Builder {
	return fiche.NewBuilder(cfg.ContentRoot, fsutil.Writer{FallbackCmd: cfg.WriteFallbackCmd}, logger)
}

func newExtractor() *scrape.Extractor {
	return scrape.NewExtractor(scrape.OptionsFromConfig(cfg), logger)
}

// newOrchestrator wires the pipeline. t may be nil when nothing will be
// reported to the tracker.
func newOrchestrator(t pipeline.Tracker, a *analyze.Client) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(t, newExtractor(), a, newFicheBuilder(), newIndexBuilder(), logger)
}

func newTracker() (*tracker.Client, error) {
	return tracker.NewFromConfig(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
