// Package storagetest provides an in-memory storage backend for tests.
//
// FakeProvider behaves like a small Drive: files and folders have opaque ids,
// parents and non-unique names. It counts every call so tests can assert that
// a request never reached the provider.
//
//	fake := storagetest.NewFakeProvider()
//	client := storage.NewClient(fake, nil)
//	// ... exercise client or HTTP handlers ...
//	assert.Zero(t, fake.TotalCalls())
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
	"drive-gateway/internal/storage"
)

type entry struct {
	file    models.File
	content []byte
}

// FakeProvider is a manual fake of storage.StorageProvider.
type FakeProvider struct {
	mu        sync.Mutex
	nextID    int
	entries   map[string]*entry
	failOn    map[string]error // method -> error to return
	callCount map[string]int
	now       func() time.Time
}

var _ storage.StorageProvider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		entries:   make(map[string]*entry),
		failOn:    make(map[string]error),
		callCount: make(map[string]int),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// WithError makes every call to method fail with err.
func (f *FakeProvider) WithError(method string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[method] = err
	return f
}

// WithNativeDocument adds a file that has metadata but no binary content,
// like a Google Doc.
func (f *FakeProvider) WithNativeDocument(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.entries[id] = &entry{file: models.File{
		ID:       id,
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
	}}
	return id
}

// Calls returns how many times method was invoked.
func (f *FakeProvider) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *FakeProvider) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.callCount {
		total += n
	}
	return total
}

func (f *FakeProvider) Name() string { return "fake" }

// enter records the call and returns the configured failure, if any.
// The caller must hold f.mu.
func (f *FakeProvider) enter(ctx context.Context, method string) error {
	f.callCount[method]++
	if err := ctx.Err(); err != nil {
		return gwerrors.Wrap(gwerrors.KindUnavailable, method, "request was cancelled", err)
	}
	return f.failOn[method]
}

func (f *FakeProvider) newID() string {
	f.nextID++
	return fmt.Sprintf("fake-%04d", f.nextID)
}

func (f *FakeProvider) List(ctx context.Context, q models.ListQuery) (*models.FileList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "List"); err != nil {
		return nil, err
	}

	var ids []string
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &models.FileList{Files: []*models.File{}}
	for _, id := range ids {
		if q.PageToken != "" && id <= q.PageToken {
			continue
		}
		e := f.entries[id]
		if q.FolderID != "" && !contains(e.file.Parents, q.FolderID) {
			continue
		}
		if q.NameContains != "" && !strings.Contains(strings.ToLower(e.file.Name), strings.ToLower(q.NameContains)) {
			continue
		}
		if q.Limit > 0 && len(result.Files) == q.Limit {
			result.NextPageToken = result.Files[len(result.Files)-1].ID
			break
		}
		file := e.file
		result.Files = append(result.Files, &file)
	}
	return result, nil
}

func (f *FakeProvider) Get(ctx context.Context, id string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "Get"); err != nil {
		return nil, err
	}

	e, ok := f.entries[id]
	if !ok {
		return nil, notFound("get", id)
	}
	file := e.file
	return &file, nil
}

// Create reads the whole body; a fake can afford that shortcut.
func (f *FakeProvider) Create(ctx context.Context, spec models.UploadSpec) (*models.File, error) {
	f.mu.Lock()
	if err := f.enter(ctx, "Create"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	content, err := io.ReadAll(spec.Body)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUnavailable, "upload", "reading upload failed", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if spec.ParentID != "" {
		if _, ok := f.entries[spec.ParentID]; !ok {
			return nil, notFound("upload", spec.ParentID)
		}
	}

	id := f.newID()
	e := &entry{
		file: models.File{
			ID:           id,
			Name:         spec.Name,
			MimeType:     spec.MimeType,
			Size:         int64(len(content)),
			CreatedTime:  f.now(),
			ModifiedTime: f.now(),
		},
		content: content,
	}
	if spec.ParentID != "" {
		e.file.Parents = []string{spec.ParentID}
	}
	f.entries[id] = e

	file := e.file
	return &file, nil
}

func (f *FakeProvider) CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "CreateFolder"); err != nil {
		return nil, err
	}

	id := f.newID()
	e := &entry{file: models.File{
		ID:           id,
		Name:         spec.Name,
		MimeType:     models.FolderMimeType,
		IsFolder:     true,
		CreatedTime:  f.now(),
		ModifiedTime: f.now(),
	}}
	if spec.ParentID != "" {
		e.file.Parents = []string{spec.ParentID}
	}
	f.entries[id] = e

	file := e.file
	return &file, nil
}

func (f *FakeProvider) Download(ctx context.Context, id string) (*storage.FileObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "Download"); err != nil {
		return nil, err
	}

	e, ok := f.entries[id]
	if !ok {
		return nil, notFound("download", id)
	}
	if e.file.IsFolder || e.content == nil && strings.HasPrefix(e.file.MimeType, "application/vnd.google-apps.") {
		return nil, gwerrors.Wrap(gwerrors.KindNotFound, "download", "file has no binary content to download", nil)
	}

	return &storage.FileObject{
		Body:          io.NopCloser(bytes.NewReader(e.content)),
		Name:          e.file.Name,
		ContentLength: int64(len(e.content)),
		ContentType:   e.file.MimeType,
		LastModified:  e.file.ModifiedTime,
	}, nil
}

func (f *FakeProvider) Rename(ctx context.Context, id, name string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "Rename"); err != nil {
		return nil, err
	}

	e, ok := f.entries[id]
	if !ok {
		return nil, notFound("rename", id)
	}
	e.file.Name = name
	e.file.ModifiedTime = f.now()

	file := e.file
	return &file, nil
}

func (f *FakeProvider) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "Delete"); err != nil {
		return err
	}

	if _, ok := f.entries[id]; !ok {
		return notFound("delete", id)
	}
	delete(f.entries, id)
	return nil
}

func notFound(op, id string) error {
	return gwerrors.Wrap(gwerrors.KindNotFound, op, fmt.Sprintf("File not found: %s.", id), nil)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
