package cmd

import (
	"github.com/quillscan/quillscan/internal/document"
	"github.com/spf13/cobra"
)

// documentCmd represents the document command.
var documentCmd = &cobra.Command{
	Use:   "document [file]",
	Short: "Extract text from a document file",
	Long: `Extract plain text from a PDF, DOCX, RTF or TXT file without running
recognition.

Examples:
  quillscan document report.pdf
  quillscan document notes.docx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := document.NewRegistry().Extract(args[0])
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(documentCmd)
}
