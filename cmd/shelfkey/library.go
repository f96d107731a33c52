package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Print the library listing",
	Long: `Library decrypts every user's book index and metadata and prints the
merged listing. Users and books that cannot be read are left out.`,
	Example: `  shelfkey library
  shelfkey library --table`,
	Args: cobra.NoArgs,
	RunE: runLibrary,
}

var libraryTable bool

func init() {
	rootCmd.AddCommand(libraryCmd)

	libraryCmd.Flags().BoolVarP(&libraryTable, "table", "t", false,
		"Render a table instead of raw JSON")
}

func runLibrary(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := newApp()

	if libraryTable && !jsonOutput {
		lib, err := a.library.Build(ctx)
		if err != nil {
			return err
		}
		fmt.Println(renderLibrary(lib))
		return nil
	}

	out, err := a.library.JSON(ctx)
	if jsonOutput {
		return printResult(models.FromResult(out, err))
	}
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
