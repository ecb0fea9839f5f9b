package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
)

// mockS3 keeps objects in a map and implements the calls S3Provider makes
// outside the uploader.
type mockS3 struct {
	s3iface.S3API
	objects  map[string]string
	modified time.Time
	pageSize int
	lastList *s3.ListObjectsV2Input
}

func newMockS3(keys ...string) *mockS3 {
	m := &mockS3{objects: map[string]string{}, modified: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), pageSize: 1000}
	for _, k := range keys {
		m.objects[k] = "content of " + k
	}
	return m
}

func noSuchKey() error {
	return awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req-1")
}

func (m *mockS3) sortedKeys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *mockS3) ListObjectsV2WithContext(_ aws.Context, in *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	m.lastList = in
	prefix := aws.StringValue(in.Prefix)
	delim := aws.StringValue(in.Delimiter)
	after := aws.StringValue(in.StartAfter)
	if in.ContinuationToken != nil {
		after = aws.StringValue(in.ContinuationToken)
	}
	limit := m.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	count := 0
	for _, k := range m.sortedKeys() {
		if !strings.HasPrefix(k, prefix) || k <= after {
			continue
		}
		if count == limit {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(after)
			break
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, &s3.CommonPrefix{Prefix: aws.String(cp)})
				}
				after = k
				continue
			}
		}
		out.Contents = append(out.Contents, &s3.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k]))),
			LastModified: aws.Time(m.modified),
		})
		after = k
		count++
	}
	return out, nil
}

func (m *mockS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	body, ok := m.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, noSuchKey()
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(body))),
		LastModified:  aws.Time(m.modified),
	}, nil
}

func (m *mockS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/plain"),
		LastModified:  aws.Time(m.modified),
	}, nil
}

func (m *mockS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	m.objects[aws.StringValue(in.Key)] = ""
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) CopyObjectWithContext(_ aws.Context, in *s3.CopyObjectInput, _ ...request.Option) (*s3.CopyObjectOutput, error) {
	src := strings.TrimPrefix(aws.StringValue(in.CopySource), "bucket%2F")
	src = strings.ReplaceAll(src, "%2F", "/")
	body, ok := m.objects[src]
	if !ok {
		return nil, noSuchKey()
	}
	m.objects[aws.StringValue(in.Key)] = body
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3ListFolder(t *testing.T) {
	m := newMockS3("docs/", "docs/a.txt", "docs/b.txt", "docs/sub/c.txt", "top.txt")
	sp := NewS3ProviderWithClient(m, "bucket")

	list, err := sp.List(context.Background(), models.ListQuery{FolderID: "docs/", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "docs/", aws.StringValue(m.lastList.Prefix))
	assert.Equal(t, "/", aws.StringValue(m.lastList.Delimiter))

	names := make([]string, 0, len(list.Files))
	for _, f := range list.Files {
		names = append(names, f.ID)
	}
	assert.Equal(t, []string{"docs/sub/", "docs/a.txt", "docs/b.txt"}, names)
	assert.True(t, list.Files[0].IsFolder)
	assert.Equal(t, []string{"docs/"}, list.Files[1].Parents)
}

func TestS3ListRootReportsFolderMarkers(t *testing.T) {
	m := newMockS3("docs/", "docs/a.txt", "top.txt")
	sp := NewS3ProviderWithClient(m, "bucket")

	list, err := sp.List(context.Background(), models.ListQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Files, 3)

	marker := list.Files[0]
	assert.Equal(t, "docs/", marker.ID)
	assert.Equal(t, "docs", marker.Name)
	assert.True(t, marker.IsFolder)
	assert.Equal(t, models.FolderMimeType, marker.MimeType)

	assert.False(t, list.Files[1].IsFolder)
	assert.False(t, list.Files[2].IsFolder)
}

func TestS3ListPassesLimitAndToken(t *testing.T) {
	m := newMockS3("a", "b", "c")
	sp := NewS3ProviderWithClient(m, "bucket")

	page, err := sp.List(context.Background(), models.ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Files, 2)
	require.NotEmpty(t, page.NextPageToken)

	rest, err := sp.List(context.Background(), models.ListQuery{Limit: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Equal(t, page.NextPageToken, aws.StringValue(m.lastList.ContinuationToken))
	require.Len(t, rest.Files, 1)
	assert.Equal(t, "c", rest.Files[0].ID)
}

func TestS3Search(t *testing.T) {
	m := newMockS3("docs/Invoice-1.pdf", "docs/photo.jpg", "invoice-2.pdf", "other/INVOICE-3.pdf")
	m.pageSize = 2
	sp := NewS3ProviderWithClient(m, "bucket")

	list, err := sp.List(context.Background(), models.ListQuery{NameContains: "invoice", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Files, 2)
	assert.Equal(t, "docs/Invoice-1.pdf", list.Files[0].ID)
	assert.Equal(t, "invoice-2.pdf", list.Files[1].ID)
	require.Equal(t, "invoice-2.pdf", list.NextPageToken)

	rest, err := sp.List(context.Background(), models.ListQuery{NameContains: "invoice", Limit: 2, PageToken: list.NextPageToken})
	require.NoError(t, err)
	require.Len(t, rest.Files, 1)
	assert.Equal(t, "other/INVOICE-3.pdf", rest.Files[0].ID)
	assert.Empty(t, rest.NextPageToken)
}

func TestS3GetDownloadAndMissing(t *testing.T) {
	m := newMockS3("notes.txt")
	sp := NewS3ProviderWithClient(m, "bucket")
	ctx := context.Background()

	f, err := sp.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)
	assert.Equal(t, "text/plain; charset=utf-8", f.MimeType)

	obj, err := sp.Download(ctx, "notes.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	assert.Equal(t, "content of notes.txt", string(body))

	_, err = sp.Get(ctx, "missing.txt")
	assert.ErrorIs(t, err, gwerrors.ErrNotFound)
	_, err = sp.Download(ctx, "missing.txt")
	assert.ErrorIs(t, err, gwerrors.ErrNotFound)
	_, err = sp.Download(ctx, "docs/")
	assert.ErrorIs(t, err, gwerrors.ErrNotFound)
}

func TestS3CreateFolderRenameDelete(t *testing.T) {
	m := newMockS3("docs/old.txt")
	sp := NewS3ProviderWithClient(m, "bucket")
	ctx := context.Background()

	folder, err := sp.CreateFolder(ctx, models.FolderSpec{Name: "reports", ParentID: "docs/"})
	require.NoError(t, err)
	assert.Equal(t, "docs/reports/", folder.ID)
	assert.True(t, folder.IsFolder)
	assert.Contains(t, m.objects, "docs/reports/")

	renamed, err := sp.Rename(ctx, "docs/old.txt", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/new.txt", renamed.ID)
	assert.NotContains(t, m.objects, "docs/old.txt")

	_, err = sp.Rename(ctx, "docs/reports/", "x")
	assert.ErrorIs(t, err, gwerrors.ErrValidation)

	err = sp.Delete(ctx, "docs/reports/")
	assert.ErrorIs(t, err, gwerrors.ErrValidation)
	assert.Contains(t, m.objects, "docs/reports/")

	require.NoError(t, sp.Delete(ctx, "docs/new.txt"))
	assert.ErrorIs(t, sp.Delete(ctx, "docs/new.txt"), gwerrors.ErrNotFound)
}

func TestClassifyS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want gwerrors.Kind
	}{
		{"head 404", noSuchKey(), gwerrors.KindNotFound},
		{"no such key", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil), gwerrors.KindNotFound},
		{"forbidden", awserr.NewRequestFailure(awserr.New("AccessDenied", "Access Denied", nil), http.StatusForbidden, "r"), gwerrors.KindPermissionDenied},
		{"slow down", awserr.NewRequestFailure(awserr.New("SlowDown", "reduce rate", nil), http.StatusServiceUnavailable, "r"), gwerrors.KindUnavailable},
		{"throttled", awserr.New("Throttling", "slow", nil), gwerrors.KindUnavailable},
		{"transport", awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp")), gwerrors.KindUnavailable},
		{"cancelled", context.Canceled, gwerrors.KindUnavailable},
		{"unknown code", awserr.New("InvalidArgument", "bad arg", nil), gwerrors.KindUnknown},
		{"plain", errors.New("boom"), gwerrors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gwerrors.KindOf(classifyS3Error("get", tt.err)))
		})
	}

	assert.Equal(t, "bad arg", gwerrors.Detail(classifyS3Error("get", awserr.New("InvalidArgument", "bad arg", nil))))
}
