package storage

import (
	"context"
	"io"
	"time"

	"drive-gateway/internal/models"
)

// StorageProvider defines the behavior for any storage backend.
// Implementations return errors classified with drive-gateway/internal/errors.
type StorageProvider interface {
	Name() string
	List(ctx context.Context, q models.ListQuery) (*models.FileList, error)
	Get(ctx context.Context, id string) (*models.File, error)
	Create(ctx context.Context, spec models.UploadSpec) (*models.File, error)
	CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error)
	Download(ctx context.Context, id string) (*FileObject, error)
	Rename(ctx context.Context, id, name string) (*models.File, error)
	Delete(ctx context.Context, id string) error
}

// FileObject is the provider-agnostic representation of a file's content.
// Body must be closed by the caller.
type FileObject struct {
	Body          io.ReadCloser
	Name          string
	ContentLength int64 // -1 when the provider does not report it
	ContentType   string
	LastModified  time.Time
}
