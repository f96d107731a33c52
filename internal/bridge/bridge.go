// Package bridge exposes the library operations to the frontend.
//
// Every operation runs on the worker pool and is handed back as a Pending
// result. Awaiting it yields a models.Envelope, which is the only shape the
// frontend ever sees: failures are reduced to their message text.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/models"
)

// LibrarySource produces the serialized library listing.
type LibrarySource interface {
	JSON(ctx context.Context) (string, error)
}

// ContentDecryptor decrypts one book file.
type ContentDecryptor interface {
	Decrypt(ctx context.Context, keyPath, filePath, targetPath string) error
}

// PathResolver maps a book to its workspace path.
type PathResolver interface {
	TempPath(bookID, ownerID, format string) string
}

// Bridge dispatches frontend commands onto the worker pool.
type Bridge struct {
	ctx       context.Context
	pool      *Pool
	library   LibrarySource
	decryptor ContentDecryptor
	paths     PathResolver
	logger    *events.Logger
}

// Pending is a command result that is still being computed.
type Pending[T any] struct {
	future    *Future
	submitErr error
}

// New creates a bridge. Values in ctx are passed to tasks submitted through
// the exported methods.
func New(ctx context.Context, pool *Pool, library LibrarySource, decryptor ContentDecryptor, paths PathResolver, logger *events.Logger) *Bridge {
	return &Bridge{
		ctx:       ctx,
		pool:      pool,
		library:   library,
		decryptor: decryptor,
		paths:     paths,
		logger:    logger.WithField("component", "bridge"),
	}
}

// GetLibrary builds the library listing as JSON.
func (b *Bridge) GetLibrary() *Pending[string] {
	return b.getLibrary(b.ctx)
}

// Decrypt decrypts filePath into targetPath using the key file at keyPath.
func (b *Bridge) Decrypt(keyPath, filePath, targetPath string) *Pending[models.Void] {
	return b.decrypt(b.ctx, keyPath, filePath, targetPath)
}

// GetTempBookPath returns the workspace path for a book.
func (b *Bridge) GetTempBookPath(bookID, ownerID, format string) *Pending[string] {
	return b.tempBookPath(b.ctx, bookID, ownerID, format)
}

func (b *Bridge) getLibrary(ctx context.Context) *Pending[string] {
	return submit(b, ctx, func(ctx context.Context) (string, error) {
		return b.library.JSON(ctx)
	})
}

func (b *Bridge) decrypt(ctx context.Context, keyPath, filePath, targetPath string) *Pending[models.Void] {
	return submit(b, ctx, func(ctx context.Context) (models.Void, error) {
		return models.Void{}, b.decryptor.Decrypt(ctx, keyPath, filePath, targetPath)
	})
}

func (b *Bridge) tempBookPath(ctx context.Context, bookID, ownerID, format string) *Pending[string] {
	return submit(b, ctx, func(context.Context) (string, error) {
		return b.paths.TempPath(bookID, ownerID, format), nil
	})
}

// submit queues fn. ctx only carries values into the task; a submitted task
// is never cancelled.
func submit[T any](b *Bridge, ctx context.Context, fn func(ctx context.Context) (T, error)) *Pending[T] {
	ctx = context.WithoutCancel(ctx)
	f, err := b.pool.Submit(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		events.Annotate(ctx, b.logger).WithError(err).Warn("Task submission failed")
	}
	return &Pending[T]{future: f, submitErr: err}
}

// Await waits for the result. If ctx ends first the envelope carries ctx's
// error; the task itself keeps running.
func (p *Pending[T]) Await(ctx context.Context) models.Envelope[T] {
	if p.submitErr != nil {
		return models.Fail[T](executionFailed(p.submitErr).Error())
	}

	v, err := p.future.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrTaskAborted) {
			err = executionFailed(err)
		}
		return models.Fail[T](err.Error())
	}

	value, _ := v.(T)
	return models.Ok(value)
}

func executionFailed(err error) error {
	return fmt.Errorf("%w: %w", models.ErrExecutionFailed, err)
}
