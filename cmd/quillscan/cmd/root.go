// Package cmd implements the quillscan command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quillscan/quillscan/internal/config"
	"github.com/quillscan/quillscan/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quillscan",
	Short: "Text recognition service for images, videos and documents",
	Long: `quillscan extracts text from images, videos and documents.

It combines a two-stage ONNX recognition engine with adaptive image
preprocessing, video frame sampling with structural similarity
deduplication, a content-addressed result cache and spatial layout
reconstruction.

Examples:
  quillscan image scan.png
  quillscan video recording.mp4 --frame-interval 15
  quillscan batch a.png b.png c.png
  quillscan serve --port 8000`,
	Version: version.String(),
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/quillscan, /etc/quillscan)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if globalConfig == nil {
			initConfig()
		}

		level := globalConfig.LogLevel
		if cmd.Flags().Changed("log-level") {
			level, _ = cmd.Flags().GetString("log-level")
		}

		var logLevel slog.Level
		switch level {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	}
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}
	return globalConfig
}
