package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
)

// Field masks. List and search share the short one.
const (
	listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, size, parents, createdTime, modifiedTime)"
	fileFields googleapi.Field = "id, name, mimeType, size, parents, createdTime, modifiedTime, webViewLink, webContentLink, description"
)

// Drive error reasons that need a kind other than the status code suggests.
var (
	notDownloadableReasons = map[string]bool{
		"fileNotDownloadable":       true,
		"cannotDownloadAbusiveFile": true,
	}
	rateLimitReasons = map[string]bool{
		"rateLimitExceeded":        true,
		"userRateLimitExceeded":    true,
		"sharingRateLimitExceeded": true,
	}
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DriveProvider talks to Google Drive v3. Every method is a single API call.
type DriveProvider struct {
	api *drive.Service
}

// NewDriveService builds a Drive client from a service-account JSON key.
// It is meant to be called once at startup; the returned service is safe for
// concurrent use.
func NewDriveService(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*drive.Service, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("google credentials are empty")
	}

	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

func NewDriveProvider(api *drive.Service) *DriveProvider {
	return &DriveProvider{api: api}
}

func (d *DriveProvider) Name() string { return "drive" }

func (d *DriveProvider) List(ctx context.Context, q models.ListQuery) (*models.FileList, error) {
	call := d.api.Files.List().
		Q(buildDriveQuery(q)).
		Spaces("drive").
		PageSize(int64(q.Limit)).
		Fields(listFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	res, err := call.Do()
	if err != nil {
		return nil, classifyDriveError("list", err)
	}

	files := make([]*models.File, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, fileFromDrive(f))
	}
	return &models.FileList{Files: files, NextPageToken: res.NextPageToken}, nil
}

func (d *DriveProvider) Get(ctx context.Context, id string) (*models.File, error) {
	f, err := d.api.Files.Get(id).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError("get", err)
	}
	return fileFromDrive(f), nil
}

// Create uploads spec.Body as the media of a new file. The body is streamed in
// chunks by the Drive client and never held in full.
func (d *DriveProvider) Create(ctx context.Context, spec models.UploadSpec) (*models.File, error) {
	meta := &drive.File{Name: spec.Name, MimeType: spec.MimeType}
	if spec.ParentID != "" {
		meta.Parents = []string{spec.ParentID}
	}

	f, err := d.api.Files.Create(meta).
		Media(spec.Body, googleapi.ContentType(spec.MimeType)).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError("upload", err)
	}
	return fileFromDrive(f), nil
}

func (d *DriveProvider) CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error) {
	meta := &drive.File{Name: spec.Name, MimeType: models.FolderMimeType}
	if spec.ParentID != "" {
		meta.Parents = []string{spec.ParentID}
	}

	f, err := d.api.Files.Create(meta).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError("create_folder", err)
	}
	return fileFromDrive(f), nil
}

// Download opens the media stream of a file. Google-native documents have no
// binary representation and come back as NotFound.
func (d *DriveProvider) Download(ctx context.Context, id string) (*FileObject, error) {
	resp, err := d.api.Files.Get(id).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, classifyDriveError("download", err)
	}

	obj := &FileObject{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		obj.LastModified = lm
	}
	return obj, nil
}

func (d *DriveProvider) Rename(ctx context.Context, id, name string) (*models.File, error) {
	f, err := d.api.Files.Update(id, &drive.File{Name: name}).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError("rename", err)
	}
	return fileFromDrive(f), nil
}

func (d *DriveProvider) Delete(ctx context.Context, id string) error {
	err := d.api.Files.Delete(id).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return classifyDriveError("delete", err)
	}
	return nil
}

func buildDriveQuery(q models.ListQuery) string {
	clauses := []string{"trashed = false"}
	if q.FolderID != "" {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", queryEscaper.Replace(q.FolderID)))
	}
	if q.NameContains != "" {
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", queryEscaper.Replace(q.NameContains)))
	}
	return strings.Join(clauses, " and ")
}

func fileFromDrive(f *drive.File) *models.File {
	out := &models.File{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		Parents:        f.Parents,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
		Description:    f.Description,
		IsFolder:       f.MimeType == models.FolderMimeType,
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		out.CreatedTime = t
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		out.ModifiedTime = t
	}
	return out
}

func classifyDriveError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return gwerrors.Wrap(gwerrors.KindUnavailable, op, "request to storage provider was cancelled", err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		if len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}

		switch {
		case gerr.Code == http.StatusNotFound:
			return gwerrors.Wrap(gwerrors.KindNotFound, op, msg, err)
		case gerr.Code == http.StatusForbidden && notDownloadableReasons[reason]:
			return gwerrors.Wrap(gwerrors.KindNotFound, op, "file has no binary content to download", err)
		case gerr.Code == http.StatusForbidden && rateLimitReasons[reason]:
			return gwerrors.Wrap(gwerrors.KindUnavailable, op, msg, err)
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return gwerrors.Wrap(gwerrors.KindPermissionDenied, op, msg, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError:
			return gwerrors.Wrap(gwerrors.KindUnavailable, op, msg, err)
		default:
			return gwerrors.Wrap(gwerrors.KindUnknown, op, msg, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return gwerrors.Wrap(gwerrors.KindUnavailable, op, "storage provider unreachable", err)
	}

	return gwerrors.Wrap(gwerrors.KindUnknown, op, err.Error(), err)
}
