package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"drive-gateway/internal/config"
	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
)

const (
	DefaultPageSize = 10
	// MaxPageSize is the largest page Drive will return.
	MaxPageSize = 1000
)

// Client is the gateway's single entry point to the storage backend. It
// validates input before any remote call, records metrics and makes sure
// every error leaving it is classified.
type Client struct {
	backend StorageProvider
	logger  *slog.Logger
}

// New builds the backend selected by cfg.Storage.Provider. It runs once at
// startup; the returned client is shared by all requests.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	var backend StorageProvider

	switch cfg.Storage.Provider {
	case config.ProviderLocal:
		lp, err := NewLocalProvider(cfg.Storage.LocalRoot)
		if err != nil {
			return nil, err
		}
		backend = lp
	case config.ProviderS3:
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		if cfg.Storage.Endpoint != "" {
			s3Config.Endpoint = aws.String(cfg.Storage.Endpoint)
		}
		sess, err := session.NewSession(s3Config)
		if err != nil {
			return nil, fmt.Errorf("create s3 session: %w", err)
		}
		backend = NewS3Provider(sess, cfg.Storage.Bucket)
	default:
		creds, err := cfg.GoogleCredentials()
		if err != nil {
			return nil, err
		}
		svc, err := NewDriveService(ctx, creds)
		if err != nil {
			return nil, err
		}
		backend = NewDriveProvider(svc)
	}

	return NewClient(backend, logger), nil
}

func NewClient(backend StorageProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{backend: backend, logger: logger.With("provider", backend.Name())}
}

func (c *Client) ProviderName() string {
	return c.backend.Name()
}

func (c *Client) ListFiles(ctx context.Context, folderID string, limit int, pageToken string) (*models.FileList, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	var list *models.FileList
	err = c.observe(ctx, "list", func() (err error) {
		list, err = c.backend.List(ctx, models.ListQuery{FolderID: folderID, Limit: limit, PageToken: pageToken})
		return err
	})
	return list, err
}

func (c *Client) Search(ctx context.Context, query string, limit int, pageToken string) (*models.FileList, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, gwerrors.Validation("search query must not be empty")
	}
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	var list *models.FileList
	err = c.observe(ctx, "search", func() (err error) {
		list, err = c.backend.List(ctx, models.ListQuery{NameContains: query, Limit: limit, PageToken: pageToken})
		return err
	})
	return list, err
}

func (c *Client) GetFile(ctx context.Context, id string) (*models.File, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}

	var f *models.File
	err := c.observe(ctx, "get", func() (err error) {
		f, err = c.backend.Get(ctx, id)
		return err
	})
	return f, err
}

// Upload sends spec to the backend. A missing MIME type is inferred from the
// file name.
func (c *Client) Upload(ctx context.Context, spec models.UploadSpec) (*models.File, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, gwerrors.Validation("uploaded file must have a name")
	}
	if spec.Body == nil {
		return nil, gwerrors.Validation("uploaded file has no content stream")
	}
	if spec.MimeType == "" {
		spec.MimeType = InferContentType(spec.Name)
	}

	var f *models.File
	err := c.observe(ctx, "upload", func() (err error) {
		f, err = c.backend.Create(ctx, spec)
		return err
	})
	return f, err
}

// Download opens the content stream of id. The caller owns obj.Body.
func (c *Client) Download(ctx context.Context, id string) (*FileObject, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}

	var obj *FileObject
	err := c.observe(ctx, "download", func() (err error) {
		obj, err = c.backend.Download(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	return obj, nil
}

func (c *Client) Rename(ctx context.Context, id, name string) (*models.File, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, gwerrors.Validation("new name must not be empty")
	}

	var f *models.File
	err := c.observe(ctx, "rename", func() (err error) {
		f, err = c.backend.Rename(ctx, id, name)
		return err
	})
	return f, err
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return c.observe(ctx, "delete", func() error {
		return c.backend.Delete(ctx, id)
	})
}

func (c *Client) CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, gwerrors.Validation("folder name must not be empty")
	}

	var f *models.File
	err := c.observe(ctx, "create_folder", func() (err error) {
		f, err = c.backend.CreateFolder(ctx, spec)
		return err
	})
	return f, err
}

// observe runs one backend call, classifies whatever it returns and records
// the outcome.
func (c *Client) observe(ctx context.Context, op string, call func() error) error {
	start := time.Now()
	err := gwerrors.Ensure(op, call())

	outcome := "ok"
	if err != nil {
		outcome = gwerrors.KindOf(err).String()
	}
	providerCalls.WithLabelValues(c.backend.Name(), op, outcome).Inc()
	providerCallDuration.WithLabelValues(c.backend.Name(), op).Observe(time.Since(start).Seconds())

	if err != nil {
		level := slog.LevelWarn
		if kind := gwerrors.KindOf(err); kind == gwerrors.KindUnknown || kind == gwerrors.KindUnavailable {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "storage call failed", "op", op, "kind", gwerrors.KindOf(err).String(), "error", err)
	}
	return err
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return gwerrors.Validation("file id must not be empty")
	}
	return nil
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit < 1:
		return 0, gwerrors.Validation("limit must be a positive integer")
	case limit > MaxPageSize:
		return MaxPageSize, nil
	default:
		return limit, nil
	}
}

// InferContentType guesses a MIME type from a file name's extension.
func InferContentType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}
