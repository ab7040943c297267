package cmd

import (
	"fmt"

	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/spf13/cobra"
)

// videoCmd represents the video command.
var videoCmd = &cobra.Command{
	Use:   "video [file]",
	Short: "Recognize text across video frames",
	Long: `Sample frames from a video, recognize text in each distinct frame and
aggregate the unique text segments into a single result.

Examples:
  quillscan video recording.mp4
  quillscan video screencast.mkv --frame-interval 15 --max-frames 200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !ocr.IsVideoPath(path) {
			return fmt.Errorf("unsupported file format: %s", path)
		}

		cfg := GetConfig()
		videoOpts := cfg.ToVideoOpts()
		if cmd.Flags().Changed("frame-interval") {
			videoOpts.FrameInterval, _ = cmd.Flags().GetInt("frame-interval")
		}
		if cmd.Flags().Changed("max-frames") {
			videoOpts.MaxFrames, _ = cmd.Flags().GetInt("max-frames")
		}
		if cmd.Flags().Changed("similarity-threshold") {
			videoOpts.SimilarityThreshold, _ = cmd.Flags().GetFloat64("similarity-threshold")
		}

		dispatcher, cleanup := buildDispatcher(cfg)
		defer cleanup()

		res := dispatcher.SubmitVideo(cmd.Context(), path, videoOpts, ocr.DefaultPreprocessOpts())
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(videoCmd)

	videoCmd.Flags().Int("frame-interval", 0, "sample every Nth frame")
	videoCmd.Flags().Int("max-frames", 0, "stop after this many kept frames")
	videoCmd.Flags().Float64("similarity-threshold", 0, "SSIM threshold above which a frame is skipped")
}
