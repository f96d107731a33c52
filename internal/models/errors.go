package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrKeyDerivation      = errors.New("unable to derive the base key")
	ErrAlreadyInitialized = errors.New("base key already initialized")
	ErrNotInitialized     = errors.New("unable to get base key")
	ErrWorkspaceInit      = errors.New("unable to initialise the temporary workspace")
	ErrLibraryNotFound    = errors.New("library path not found")
	ErrExecutionFailed    = errors.New("execution failed")
)

// Decryption strategies reported in DecryptError.
const (
	StrategyKey     = "key"
	StrategyArchive = "archive"
	StrategyBinary  = "binary"
)

// DecryptError represents a content decryption failure.
type DecryptError struct {
	Path     string
	Strategy string
	Err      error
}

func (e *DecryptError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decrypt %s: %s: %v", e.Path, e.Strategy, e.Err)
	}
	return fmt.Sprintf("decrypt: %s: %v", e.Strategy, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}
