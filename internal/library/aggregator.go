// Package library rebuilds the merged book listing from the vendor's
// encrypted per-user stores.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/models"
	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

var (
	errNoData   = errors.New("missing data")
	errNoBookID = errors.New("entry has no bId")
)

// Aggregator builds the library listing.
type Aggregator struct {
	backend vendor.Capability
	logger  *events.Logger
}

type userDir struct {
	id   string
	path string
}

type userBooks struct {
	id    string
	books map[string]models.BookRecord
}

type bookEntry struct {
	id     string
	record models.BookRecord
}

// New creates an aggregator.
func New(backend vendor.Capability, logger *events.Logger) *Aggregator {
	return &Aggregator{
		backend: backend,
		logger:  logger.WithField("component", "library"),
	}
}

// Build walks every user store and returns the books that could be read.
// A user or book that fails at any stage is left out. The only error is
// models.ErrLibraryNotFound. A walk that has started runs to completion.
func (a *Aggregator) Build(ctx context.Context) (models.Library, error) {
	root, err := a.backend.DataRoot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLibraryNotFound, err)
	}
	layout := vendor.Layout{Root: root}

	users, err := a.listUsers(layout.UsersDir())
	if err != nil {
		return nil, err
	}

	logger := events.Annotate(ctx, a.logger)

	results := collect(logger, users,
		func(u userDir) string { return u.path },
		func(u userDir) (userBooks, error) {
			return a.buildUser(logger, layout, u)
		})

	lib := make(models.Library, len(results))
	for _, r := range results {
		if len(r.books) > 0 {
			lib[r.id] = r.books
		}
	}

	logger.WithFields(map[string]interface{}{
		"users": len(lib),
		"books": lib.BookCount(),
	}).Debug("Library built")

	return lib, nil
}

// JSON builds the library and serializes it.
func (a *Aggregator) JSON(ctx context.Context) (string, error) {
	lib, err := a.Build(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(lib)
	if err != nil {
		return "", fmt.Errorf("encode library: %w", err)
	}
	return string(data), nil
}

func (a *Aggregator) listUsers(usersDir string) ([]userDir, error) {
	st, err := os.Stat(usersDir)
	if err != nil || !st.IsDir() {
		return nil, models.ErrLibraryNotFound
	}

	entries, err := os.ReadDir(usersDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLibraryNotFound, err)
	}

	users := make([]userDir, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(usersDir, e.Name())
		if st, err := os.Stat(path); err != nil || !st.IsDir() {
			continue
		}
		id, ok := models.ParseUserID(e.Name())
		if !ok {
			continue
		}
		users = append(users, userDir{id: id, path: path})
	}
	return users, nil
}

func (a *Aggregator) buildUser(logger *events.Logger, layout vendor.Layout, u userDir) (userBooks, error) {
	key, err := a.backend.UserKey(vendor.IndexStoreName, u.id)
	if err != nil {
		return userBooks{}, fmt.Errorf("index key: %w", err)
	}
	raw, err := a.backend.DecryptStore(key, layout.IndexPath(u.path))
	if err != nil {
		return userBooks{}, err
	}

	var index map[string]any
	if err := decodeJSON(raw, &index); err != nil {
		return userBooks{}, fmt.Errorf("parse index: %w", err)
	}
	items, ok := index["data"].([]any)
	if !ok {
		return userBooks{}, fmt.Errorf("index: %w", errNoData)
	}

	entries := collect(logger.WithField("user_id", u.id), items, itemName, func(item any) (bookEntry, error) {
		return a.buildBook(layout, u, item)
	})

	books := make(map[string]models.BookRecord, len(entries))
	for _, e := range entries {
		books[e.id] = e.record
	}
	return userBooks{id: u.id, books: books}, nil
}

func (a *Aggregator) buildBook(layout vendor.Layout, u userDir, item any) (bookEntry, error) {
	bookID, ok := bookIDOf(item)
	if !ok {
		return bookEntry{}, errNoBookID
	}

	key, err := a.backend.UserKey(bookID, u.id)
	if err != nil {
		return bookEntry{}, fmt.Errorf("meta key: %w", err)
	}
	raw, err := a.backend.DecryptStore(key, layout.MetaPath(u.path, bookID))
	if err != nil {
		return bookEntry{}, err
	}

	var meta map[string]any
	if err := decodeJSON(raw, &meta); err != nil {
		return bookEntry{}, fmt.Errorf("parse meta: %w", err)
	}
	data, ok := meta["data"].(map[string]any)
	if !ok {
		return bookEntry{}, fmt.Errorf("meta: %w", errNoData)
	}

	record := models.BookRecord(data)
	record.SetStorage(scanStorage(layout.BookDir(u.id, bookID), bookID, record.Format()))

	return bookEntry{id: bookID, record: record}, nil
}

func bookIDOf(item any) (string, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := obj["bId"].(string)
	return id, ok
}

func itemName(item any) string {
	if id, ok := bookIDOf(item); ok {
		return id
	}
	return "<no bId>"
}

// decodeJSON parses a single JSON document. Numbers are kept verbatim so that
// metadata survives re-encoding unchanged.
func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON document")
	}
	return nil
}
