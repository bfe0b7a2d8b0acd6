package videostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	// matches the SDK on a plain-http endpoint
	if _, ok := in.Body.(io.Seeker); !ok {
		return nil, errors.New("unseekable stream is not supported without TLS and trailing checksum")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if in.ContentLength == nil || *in.ContentLength != int64(len(body)) {
		return nil, fmt.Errorf("content length %v, body is %d bytes", in.ContentLength, len(body))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{body: body, contentType: aws.ToString(in.ContentType), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	uploaded := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, _, err := store.Get(ctx, "algebra"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}

	meta := Metadata{Name: "Algebra week 1", ContentType: "video/mp4", DurationSec: 20, UploadedAt: uploaded}
	if err := store.Put(ctx, "algebra", meta, strings.NewReader("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// last write wins
	if err := store.Put(ctx, "algebra", meta, strings.NewReader("second take")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "physics", Metadata{Name: "Physics"}, strings.NewReader("p")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, blob, err := store.Get(ctx, "algebra")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(blob)
	blob.Close()
	if string(data) != "second take" {
		t.Errorf("blob = %q", data)
	}
	if got.ID != "algebra" || got.Name != "Algebra week 1" || got.DurationSec != 20 || got.Size != int64(len("second take")) {
		t.Errorf("metadata = %+v", got)
	}
	if !got.UploadedAt.Equal(uploaded) || got.ContentType != "video/mp4" {
		t.Errorf("metadata = %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "algebra" || list[1].ID != "physics" {
		t.Errorf("List = %+v", list)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	exerciseStore(t, NewS3StoreWithClient(fake, "videos-bucket"))

	if _, ok := fake.objects["videos/algebra"]; !ok {
		t.Errorf("object keys = %v", fake.objects)
	}
}

func TestS3Store_PutUnseekableBody(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "videos-bucket")
	ctx := context.Background()

	// a request body cannot seek
	body := io.NopCloser(strings.NewReader("lecture-bytes"))
	if err := store.Put(ctx, "algebra", Metadata{Name: "lecture.mp4", ContentType: "video/mp4"}, body); err != nil {
		t.Fatalf("Put: %v", err)
	}

	meta, rc, err := store.Get(ctx, "algebra")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "lecture-bytes" || meta.Size != int64(len("lecture-bytes")) {
		t.Errorf("stored %q (size %d)", data, meta.Size)
	}
}
