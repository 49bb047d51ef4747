package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memoryBucket struct {
	bucket  string
	objects map[string][]byte
	meta    map[string]map[string]string
	failPut bool
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (m *memoryBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.failPut {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.bucket = *params.Bucket
	m.objects[*params.Key] = data
	m.meta[*params.Key] = params.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryBucket) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(data)),
		Metadata: m.meta[*params.Key],
	}, nil
}

func TestS3Archiver_RoundTrip(t *testing.T) {
	b := newMemoryBucket()
	a := NewS3Archiver(b, "books")
	ctx := context.Background()

	text := []byte("CHAPTER I\n홍길동 met 임꺽정.")
	key, err := a.ArchiveSource(ctx, 7, "https://example.com/a book.txt?x=1", text)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.HasPrefix(key, "books/7/sources/") || !strings.HasSuffix(key, ".txt") {
		t.Fatalf("unexpected key %s", key)
	}
	if b.bucket != "books" {
		t.Fatalf("expected bucket books, got %s", b.bucket)
	}

	got, source, err := a.GetSource(ctx, key)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !bytes.Equal(got, text) {
		t.Fatalf("expected %q, got %q", text, got)
	}
	if source != "https://example.com/a book.txt?x=1" {
		t.Fatalf("unexpected source %q", source)
	}

	other, err := a.ArchiveSource(ctx, 7, "text", text)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if other == key {
		t.Fatal("expected every run to get its own key")
	}
}

func TestS3Archiver_Errors(t *testing.T) {
	b := newMemoryBucket()
	b.failPut = true
	a := NewS3Archiver(b, "books")

	if _, err := a.ArchiveSource(context.Background(), 1, "text", []byte("x")); err == nil {
		t.Fatal("expected upload error")
	}
	if _, _, err := a.GetSource(context.Background(), "books/1/sources/missing.txt"); err == nil {
		t.Fatal("expected download error")
	}
}

func TestS3Config_Enabled(t *testing.T) {
	if (S3Config{}).Enabled() {
		t.Fatal("expected empty config to be disabled")
	}
	if !(S3Config{Bucket: "books"}).Enabled() {
		t.Fatal("expected config with a bucket to be enabled")
	}
}
