package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <key-file> <book-file> <target>",
	Short: "Decrypt a single book",
	Long: `Decrypt reads the content key from the book's key file and writes the
plaintext book to target. Archive books are tried first, then plain binary.`,
	Example: `  shelfkey decrypt BID123.dat BID123.epub ./BID123.epub`,
	Args:    cobra.ExactArgs(3),
	RunE:    runDecrypt,
}

func init() {
	rootCmd.AddCommand(decryptCmd)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	keyPath, filePath, targetPath := args[0], args[1], args[2]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a := newApp()
	if err := a.keys.Init(a.backend); err != nil {
		return err
	}

	err := a.decryptor.Decrypt(ctx, keyPath, filePath, targetPath)
	if jsonOutput {
		return printResult(models.FromResult(models.Void{}, err))
	}
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", filePath, err)
	}

	printSuccess("Decrypted to %s", targetPath)
	return nil
}
