package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
)

// S3Provider maps the gateway's file model onto an S3/B2 bucket. Ids are
// object keys and folders are keys ending in "/".
type S3Provider struct {
	api      s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3Provider(sess *session.Session, bucket string) *S3Provider {
	return NewS3ProviderWithClient(s3.New(sess), bucket)
}

func NewS3ProviderWithClient(api s3iface.S3API, bucket string) *S3Provider {
	return &S3Provider{
		api:      api,
		uploader: s3manager.NewUploaderWithClient(api),
		bucket:   bucket,
	}
}

func (s *S3Provider) Name() string { return "s3" }

// List returns the direct children of a folder, or every key in the bucket
// when no folder is given. Search scans the bucket and filters by name.
func (s *S3Provider) List(ctx context.Context, q models.ListQuery) (*models.FileList, error) {
	if q.NameContains != "" {
		return s.search(ctx, q)
	}

	prefix := folderKey(q.FolderID)
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(int64(q.Limit)),
	}
	if prefix != "" {
		input.Delimiter = aws.String("/")
	}
	if q.PageToken != "" {
		input.ContinuationToken = aws.String(q.PageToken)
	}

	out, err := s.api.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, classifyS3Error("list", err)
	}

	files := make([]*models.File, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, p := range out.CommonPrefixes {
		files = append(files, folderFromKey(aws.StringValue(p.Prefix)))
	}
	for _, item := range out.Contents {
		key := aws.StringValue(item.Key)
		switch {
		case key == prefix:
			continue
		case strings.HasSuffix(key, "/"):
			files = append(files, folderFromKey(key))
		default:
			files = append(files, fileFromObject(item))
		}
	}

	return &models.FileList{Files: files, NextPageToken: aws.StringValue(out.NextContinuationToken)}, nil
}

func (s *S3Provider) search(ctx context.Context, q models.ListQuery) (*models.FileList, error) {
	needle := strings.ToLower(q.NameContains)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(folderKey(q.FolderID)),
	}
	if q.PageToken != "" {
		input.StartAfter = aws.String(q.PageToken)
	}

	result := &models.FileList{Files: []*models.File{}}
	for {
		out, err := s.api.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return nil, classifyS3Error("search", err)
		}

		for _, item := range out.Contents {
			key := aws.StringValue(item.Key)
			if !strings.Contains(strings.ToLower(path.Base(key)), needle) {
				continue
			}
			if q.Limit > 0 && len(result.Files) == q.Limit {
				result.NextPageToken = result.Files[len(result.Files)-1].ID
				return result, nil
			}
			if strings.HasSuffix(key, "/") {
				result.Files = append(result.Files, folderFromKey(key))
			} else {
				result.Files = append(result.Files, fileFromObject(item))
			}
		}

		if !aws.BoolValue(out.IsTruncated) {
			return result, nil
		}
		input.StartAfter = nil
		input.ContinuationToken = out.NextContinuationToken
	}
}

func (s *S3Provider) Get(ctx context.Context, id string) (*models.File, error) {
	out, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, classifyS3Error("get", err)
	}
	return fileFromHead(id, out), nil
}

// Create streams spec.Body to the bucket through the multipart uploader.
// S3 keys are unique, so an upload with an existing name replaces it.
func (s *S3Provider) Create(ctx context.Context, spec models.UploadSpec) (*models.File, error) {
	key := folderKey(spec.ParentID) + spec.Name
	body := &countingReader{r: spec.Body}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(spec.MimeType),
	})
	if err != nil {
		return nil, classifyS3Error("upload", err)
	}

	return &models.File{
		ID:           key,
		Name:         spec.Name,
		MimeType:     spec.MimeType,
		Size:         body.n,
		Parents:      parentsOf(key),
		ModifiedTime: time.Now().UTC(),
	}, nil
}

func (s *S3Provider) CreateFolder(ctx context.Context, spec models.FolderSpec) (*models.File, error) {
	key := folderKey(spec.ParentID) + spec.Name + "/"
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String(models.FolderMimeType),
	})
	if err != nil {
		return nil, classifyS3Error("create_folder", err)
	}
	return folderFromKey(key), nil
}

func (s *S3Provider) Download(ctx context.Context, id string) (*FileObject, error) {
	if strings.HasSuffix(id, "/") {
		return nil, gwerrors.Wrap(gwerrors.KindNotFound, "download", "folders have no binary content to download", nil)
	}

	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, classifyS3Error("download", err)
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	return &FileObject{
		Body:          out.Body,
		Name:          path.Base(id),
		ContentLength: length,
		ContentType:   aws.StringValue(out.ContentType),
		LastModified:  aws.TimeValue(out.LastModified),
	}, nil
}

// Rename copies the object to its new key and removes the old one. Folders
// would need every child rewritten and are refused.
func (s *S3Provider) Rename(ctx context.Context, id, name string) (*models.File, error) {
	if strings.HasSuffix(id, "/") {
		return nil, gwerrors.Validation("the s3 backend cannot rename folders")
	}

	newKey := folderKey(path.Dir(id)) + name
	_, err := s.api.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + id)),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return nil, classifyS3Error("rename", err)
	}

	if newKey != id {
		if _, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(id),
		}); err != nil {
			return nil, classifyS3Error("rename", err)
		}
	}

	return s.Get(ctx, newKey)
}

// Delete checks the key first because S3 deletes are idempotent and would
// otherwise hide unknown ids. Folders are refused: removing the marker would
// leave its children behind.
func (s *S3Provider) Delete(ctx context.Context, id string) error {
	if strings.HasSuffix(id, "/") {
		return gwerrors.Validation("the s3 backend cannot delete folders")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return classifyS3Error("delete", err)
	}
	return nil
}

// folderKey turns a folder id into a key prefix. The root folder is "".
func folderKey(id string) string {
	id = strings.Trim(id, "/")
	if id == "" || id == "." {
		return ""
	}
	return id + "/"
}

func parentsOf(key string) []string {
	parent := path.Dir(strings.TrimSuffix(key, "/"))
	if parent == "." || parent == "/" {
		return nil
	}
	return []string{parent + "/"}
}

func folderFromKey(key string) *models.File {
	return &models.File{
		ID:       key,
		Name:     path.Base(key),
		MimeType: models.FolderMimeType,
		Parents:  parentsOf(key),
		IsFolder: true,
	}
}

func fileFromObject(obj *s3.Object) *models.File {
	key := aws.StringValue(obj.Key)
	return &models.File{
		ID:           key,
		Name:         path.Base(key),
		MimeType:     InferContentType(key),
		Size:         aws.Int64Value(obj.Size),
		Parents:      parentsOf(key),
		ModifiedTime: aws.TimeValue(obj.LastModified),
	}
}

func fileFromHead(key string, out *s3.HeadObjectOutput) *models.File {
	if strings.HasSuffix(key, "/") {
		f := folderFromKey(key)
		f.ModifiedTime = aws.TimeValue(out.LastModified)
		return f
	}
	mimeType := aws.StringValue(out.ContentType)
	if mimeType == "" {
		mimeType = InferContentType(key)
	}
	return &models.File{
		ID:           key,
		Name:         path.Base(key),
		MimeType:     mimeType,
		Size:         aws.Int64Value(out.ContentLength),
		Parents:      parentsOf(key),
		ModifiedTime: aws.TimeValue(out.LastModified),
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func classifyS3Error(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return gwerrors.Wrap(gwerrors.KindUnavailable, op, "request to storage provider was cancelled", err)
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		switch code := reqErr.StatusCode(); {
		case code == http.StatusNotFound:
			return gwerrors.Wrap(gwerrors.KindNotFound, op, "file not found", err)
		case code == http.StatusForbidden:
			return gwerrors.Wrap(gwerrors.KindPermissionDenied, op, reqErr.Message(), err)
		case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
			return gwerrors.Wrap(gwerrors.KindUnavailable, op, reqErr.Message(), err)
		}
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return gwerrors.Wrap(gwerrors.KindNotFound, op, "file not found", err)
		case "AccessDenied", "Forbidden":
			return gwerrors.Wrap(gwerrors.KindPermissionDenied, op, aerr.Message(), err)
		case "SlowDown", "Throttling", "ServiceUnavailable",
			request.CanceledErrorCode, request.ErrCodeRequestError, request.ErrCodeResponseTimeout:
			return gwerrors.Wrap(gwerrors.KindUnavailable, op, "storage provider unavailable", err)
		}
		msg := aerr.Message()
		if msg == "" {
			msg = aerr.Code()
		}
		return gwerrors.Wrap(gwerrors.KindUnknown, op, msg, err)
	}

	return gwerrors.Wrap(gwerrors.KindUnknown, op, err.Error(), err)
}
