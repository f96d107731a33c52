package main

import (
	"github.com/TheMichaelB/shelfkey/internal/crypto"
	"github.com/TheMichaelB/shelfkey/internal/decrypt"
	"github.com/TheMichaelB/shelfkey/internal/keystore"
	"github.com/TheMichaelB/shelfkey/internal/library"
	"github.com/TheMichaelB/shelfkey/internal/workspace"
)

// app holds the components shared by the commands.
type app struct {
	backend   *crypto.Provider
	keys      *keystore.Store
	workspace *workspace.Manager
	library   *library.Aggregator
	decryptor *decrypt.Decryptor
}

func newApp() *app {
	backend := crypto.NewProvider(cfg.Vendor.Root, cfg.Vendor.DeviceSecret)
	keys := keystore.New()

	return &app{
		backend:   backend,
		keys:      keys,
		workspace: workspace.New(cfg.Workspace.Dir, logger),
		library:   library.New(backend, logger),
		decryptor: decrypt.New(backend, keys, logger),
	}
}
