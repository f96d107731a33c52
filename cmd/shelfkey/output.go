package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

var stdout io.Writer = os.Stdout

func printError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Println(color.GreenString("✓") + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.YellowString("!")+" "+fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...interface{}) {
	fmt.Println(color.CyanString("→") + " " + fmt.Sprintf(format, args...))
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("encode output: %v", err)
		return
	}
	fmt.Fprintln(stdout, string(data))
}

// printResult writes env as JSON and returns its error, if any.
func printResult[T any](env models.Envelope[T]) error {
	printJSON(env)
	if _, ok := env.Get(); !ok {
		return errors.New(env.Err())
	}
	return nil
}
