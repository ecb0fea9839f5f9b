package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
)

// LocalProvider serves a directory tree as if it were a remote drive. Ids are
// slash-separated paths relative to RootPath; the root itself is "".
type LocalProvider struct {
	RootPath string
}

func NewLocalProvider(root string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage root: %w", err)
	}
	return &LocalProvider{RootPath: abs}, nil
}

func (l *LocalProvider) Name() string { return "local" }

// cleanID normalizes an id so it can never climb above the root.
func cleanID(id string) string {
	return strings.TrimPrefix(path.Clean("/"+id), "/")
}

func (l *LocalProvider) abs(id string) string {
	return filepath.Join(l.RootPath, filepath.FromSlash(cleanID(id)))
}

func (l *LocalProvider) List(ctx context.Context, q models.ListQuery) (*models.FileList, error) {
	op := "list"
	if q.NameContains != "" {
		op = "search"
	}

	var files []*models.File
	var err error
	if q.FolderID != "" && q.NameContains == "" {
		files, err = l.children(ctx, cleanID(q.FolderID))
	} else {
		files, err = l.walk(ctx, cleanID(q.FolderID), strings.ToLower(q.NameContains))
	}
	if err != nil {
		return nil, classifyLocalError(op, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return paginate(files, q.PageToken, q.Limit), nil
}

func (l *LocalProvider) children(ctx context.Context, dirID string) ([]*models.File, error) {
	entries, err := os.ReadDir(l.abs(dirID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	files := make([]*models.File, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, fileFromInfo(path.Join(dirID, e.Name()), info))
	}
	return files, nil
}

func (l *LocalProvider) walk(ctx context.Context, dirID, needle string) ([]*models.File, error) {
	root := l.abs(dirID)
	var files []*models.File

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if needle != "" && !strings.Contains(strings.ToLower(d.Name()), needle) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(l.RootPath, p)
		files = append(files, fileFromInfo(filepath.ToSlash(rel), info))
		return nil
	})
	return files, err
}

// paginate applies a cursor: the token is the id of the last file on the
// previous page.
func paginate(files []*models.File, token string, limit int) *models.FileList {
	start := 0
	if token != "" {
		start = sort.Search(len(files), func(i int) bool { return files[i].ID > token })
	}

	page := files[start:]
	result := &models.FileList{}
	if limit > 0 && len(page) > limit {
		page = page[:limit]
		result.NextPageToken = page[len(page)-1].ID
	}
	result.Files = append([]*models.File{}, page...)
	return result
}

func (l *LocalProvider) Get(ctx context.Context, id string) (*models.File, error) {
	id = cleanID(id)
	info, err := os.Stat(l.abs(id))
	if err != nil {
		return nil, classifyLocalError("get", err)
	}
	return fileFromInfo(id, info), nil
}

// Create writes spec.Body to a new file. Duplicate names get a numeric suffix
// instead of replacing the existing file.
func (l *LocalProvider) Create(ctx context.Context, spec models.UploadSpec) (*models.File, error) {
	if strings.ContainsAny(spec.Name, `/\`) {
		return nil, gwerrors.Validation("file name must not contain path separators")
	}

	parentID := cleanID(spec.ParentID)
	dir := l.abs(parentID)
	if err := requireDir(dir); err != nil {
		return nil, classifyLocalError("upload", err)
	}

	f, name, err := createUnique(dir, spec.Name)
	if err != nil {
		return nil, classifyLocalError("upload", err)
	}

	_, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: spec.Body})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(f.Name())
		return nil, classifyLocalError("upload", errors.Join(copyErr, closeErr))
	}

	return l.Get(ctx, path.Join(parentID, name))
}

func (l *LocalProvider) CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error) {
	if strings.ContainsAny(spec.Name, `/\`) {
		return nil, gwerrors.Validation("folder name must not contain path separators")
	}

	parentID := cleanID(spec.ParentID)
	dir := l.abs(parentID)
	if err := requireDir(dir); err != nil {
		return nil, classifyLocalError("create_folder", err)
	}

	name := spec.Name
	for i := 1; ; i++ {
		err := os.Mkdir(filepath.Join(dir, name), 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, classifyLocalError("create_folder", err)
		}
		name = fmt.Sprintf("%s (%d)", spec.Name, i)
	}

	return l.Get(ctx, path.Join(parentID, name))
}

func (l *LocalProvider) Download(ctx context.Context, id string) (*FileObject, error) {
	id = cleanID(id)
	f, err := os.Open(l.abs(id))
	if err != nil {
		return nil, classifyLocalError("download", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, classifyLocalError("download", err)
	}
	if stat.IsDir() {
		f.Close()
		return nil, gwerrors.Wrap(gwerrors.KindNotFound, "download", "folders have no binary content to download", nil)
	}

	return &FileObject{
		Body:          f,
		Name:          stat.Name(),
		ContentLength: stat.Size(),
		ContentType:   InferContentType(stat.Name()),
		LastModified:  stat.ModTime(),
	}, nil
}

func (l *LocalProvider) Rename(ctx context.Context, id, name string) (*models.File, error) {
	if strings.ContainsAny(name, `/\`) {
		return nil, gwerrors.Validation("file name must not contain path separators")
	}

	id = cleanID(id)
	if id == "" {
		return nil, gwerrors.Validation("the root folder cannot be renamed")
	}
	src := l.abs(id)
	if _, err := os.Stat(src); err != nil {
		return nil, classifyLocalError("rename", err)
	}

	parentID := path.Dir(id)
	if parentID == "." {
		parentID = ""
	}
	if path.Base(id) == name {
		return l.Get(ctx, id)
	}

	target := name
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(filepath.Dir(src), target)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = numbered(name, i)
	}

	if err := os.Rename(src, filepath.Join(filepath.Dir(src), target)); err != nil {
		return nil, classifyLocalError("rename", err)
	}
	return l.Get(ctx, path.Join(parentID, target))
}

func (l *LocalProvider) Delete(ctx context.Context, id string) error {
	id = cleanID(id)
	if id == "" {
		return gwerrors.Validation("the root folder cannot be deleted")
	}

	p := l.abs(id)
	if _, err := os.Stat(p); err != nil {
		return classifyLocalError("delete", err)
	}
	if err := os.RemoveAll(p); err != nil {
		return classifyLocalError("delete", err)
	}
	return nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder: %w", filepath.Base(dir), fs.ErrNotExist)
	}
	return nil
}

func createUnique(dir, name string) (*os.File, string, error) {
	candidate := name
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		candidate = numbered(name, i)
	}
}

// numbered turns "report.pdf" into "report (1).pdf".
func numbered(name string, i int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
}

func fileFromInfo(id string, info fs.FileInfo) *models.File {
	f := &models.File{
		ID:           id,
		Name:         info.Name(),
		Size:         info.Size(),
		ModifiedTime: info.ModTime().UTC(),
	}
	if parent := path.Dir(id); parent != "." && parent != "/" {
		f.Parents = []string{parent}
	}
	if info.IsDir() {
		f.MimeType = models.FolderMimeType
		f.IsFolder = true
		f.Size = 0
	} else {
		f.MimeType = InferContentType(info.Name())
	}
	return f
}

// ctxReader stops a copy once the request is gone.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func classifyLocalError(op string, err error) error {
	var gerr *gwerrors.Error
	switch {
	case errors.As(err, &gerr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return gwerrors.Wrap(gwerrors.KindUnavailable, op, "request was cancelled", err)
	case errors.Is(err, fs.ErrNotExist):
		return gwerrors.Wrap(gwerrors.KindNotFound, op, "file not found", err)
	case errors.Is(err, fs.ErrPermission):
		return gwerrors.Wrap(gwerrors.KindPermissionDenied, op, "permission denied", err)
	default:
		return gwerrors.Wrap(gwerrors.KindUnknown, op, err.Error(), err)
	}
}
