package cmd

import (
	"fmt"

	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Recognize text in multiple images",
	Long: `Recognize text in multiple image files concurrently. Per-file failures
are reported inside the aggregate result; the command only fails on
invalid input.

Examples:
  quillscan batch a.png b.png c.png
  quillscan batch scans/*.png --simple`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if len(args) > cfg.Server.MaxBatchSize {
			return fmt.Errorf("batch size %d exceeds limit %d", len(args), cfg.Server.MaxBatchSize)
		}

		textOpts := ocr.DefaultTextOpts()
		if v, _ := cmd.Flags().GetBool("simple"); v {
			textOpts.UseAdvanced = false
		}

		dispatcher, cleanup := buildDispatcher(cfg)
		defer cleanup()

		res := dispatcher.SubmitBatch(cmd.Context(), args, ocr.DefaultPreprocessOpts(), textOpts)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Bool("simple", false, "skip spatial layout reconstruction")
}
