package cmd

import (
	"fmt"

	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [file]",
	Short: "Recognize text in a single image",
	Long: `Recognize text in a single image file and print the result as JSON.

Examples:
  quillscan image scan.png
  quillscan image photo.jpg --no-deskew --threshold otsu
  quillscan image page.png --reading-order rtl_ttb`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !ocr.IsImagePath(path) {
			return fmt.Errorf("unsupported file format: %s", path)
		}

		preOpts := ocr.DefaultPreprocessOpts()
		if v, _ := cmd.Flags().GetBool("no-deskew"); v {
			preOpts.Deskew = false
		}
		if v, _ := cmd.Flags().GetBool("no-denoise"); v {
			preOpts.Denoise = false
		}
		if cmd.Flags().Changed("threshold") {
			preOpts.ThresholdMethod, _ = cmd.Flags().GetString("threshold")
		}

		textOpts := ocr.DefaultTextOpts()
		if cmd.Flags().Changed("reading-order") {
			textOpts.ReadingOrder, _ = cmd.Flags().GetString("reading-order")
		}
		if v, _ := cmd.Flags().GetBool("simple"); v {
			textOpts.UseAdvanced = false
		}

		dispatcher, cleanup := buildDispatcher(GetConfig())
		defer cleanup()

		res := dispatcher.SubmitImage(cmd.Context(), path, preOpts, textOpts)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().Bool("no-deskew", false, "disable skew correction")
	imageCmd.Flags().Bool("no-denoise", false, "disable denoising")
	imageCmd.Flags().String("threshold", "", "threshold method (none, otsu, adaptive_gaussian, adaptive_mean)")
	imageCmd.Flags().String("reading-order", "", "reading order (ltr_ttb, rtl_ttb, ttb_ltr, ttb_rtl)")
	imageCmd.Flags().Bool("simple", false, "skip spatial layout reconstruction")
}
