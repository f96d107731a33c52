package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

var tempPathCmd = &cobra.Command{
	Use:   "temp-path <book-id> <owner-id> [format]",
	Short: "Print the workspace path of a decrypted book",
	Example: `  shelfkey temp-path BID123 1001
  shelfkey temp-path BID123 1001 pdf`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runTempPath,
}

func init() {
	rootCmd.AddCommand(tempPathCmd)
}

func runTempPath(cmd *cobra.Command, args []string) error {
	format := models.DefaultFormat
	if len(args) == 3 {
		format = args[2]
	}

	path := newApp().workspace.TempPath(args[0], args[1], format)

	if jsonOutput {
		return printResult(models.Ok(path))
	}
	fmt.Println(path)
	return nil
}
