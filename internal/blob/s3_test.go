package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type mockObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// mockS3 implements the s3API subset against process memory.
type mockS3 struct {
	mu   sync.Mutex
	objs map[string]mockObject
}

func newMockS3() *mockS3 { return &mockS3{objs: map[string]mockObject{}} }

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := mockObject{data: data, metadata: in.Metadata, modified: time.Now().UTC()}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	m.objs[aws.ToString(in.Key)] = obj
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", aws.ToString(in.Key))
	}
	size := int64(len(obj.data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: &size,
		ContentType:   &obj.contentType,
		Metadata:      obj.metadata,
		LastModified:  &obj.modified,
	}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("NotFound: %s", aws.ToString(in.Key))
	}
	size := int64(len(obj.data))
	etag := "\"mock-etag\""
	return &s3.HeadObjectOutput{
		ContentLength: &size,
		ContentType:   &obj.contentType,
		ETag:          &etag,
		Metadata:      obj.metadata,
		LastModified:  &obj.modified,
	}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key, obj := range m.objs {
		if in.Prefix != nil && !strings.HasPrefix(key, *in.Prefix) {
			continue
		}
		k := key
		size := int64(len(obj.data))
		modified := obj.modified
		out.Contents = append(out.Contents, s3types.Object{Key: &k, Size: &size, LastModified: &modified})
	}
	return out, nil
}

type mockPresigner struct{}

func (mockPresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (string, error) {
	return "https://signed.example/" + aws.ToString(in.Key), nil
}

func newMockS3Store() (*S3, *mockS3) {
	api := newMockS3()
	return &S3{client: api, presign: mockPresigner{}, bucket: "test-bucket"}, api
}

func TestS3PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockS3Store()

	info, err := store.Put(ctx, "scopes/default/a.json", strings.NewReader("payload"), PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"scope": "default"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("payload")) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.ETag != "mock-etag" {
		t.Fatalf("expected etag quotes stripped, got %q", info.ETag)
	}

	got, rc, err := store.Get(ctx, "scopes/default/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected body %q", data)
	}
	if got.Metadata["scope"] != "default" {
		t.Fatalf("metadata lost: %+v", got)
	}
}

func TestS3PutRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockS3Store()
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("b"), PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestS3ListSortedByKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockS3Store()
	for _, key := range []string{"scopes/b/1.json", "scopes/a/2.json", "scopes/a/1.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "scopes/a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "scopes/a/1.json" || infos[1].Key != "scopes/a/2.json" {
		t.Fatalf("unexpected listing %v", infos)
	}
}

func TestS3PresignURL(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockS3Store()
	url, err := store.PresignURL(ctx, "k", SignedURLOptions{})
	if err != nil || url != "https://signed.example/k" {
		t.Fatalf("presign: %v %q", err, url)
	}
	if _, err := store.PresignURL(ctx, "k", SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected unsupported method error")
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected bucket required error")
	}
}

func TestOpenS3FromEnvRequiresBucket(t *testing.T) {
	t.Setenv("LINEAGECORE_BLOB_S3_BUCKET", "")
	if _, err := OpenS3FromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
