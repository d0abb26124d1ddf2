package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pagevault/internal/config"
	"pagevault/internal/pv"
)

// fakeS3 is an in-memory stand-in for the S3 client and upload manager.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket/key -> body
	uploads int
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != "pages" {
		return nil, &types.NoSuchBucket{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.uploads++
	return &manager.UploadOutput{}, nil
}

func newTestS3Store(prefix string) (*S3Store, *fakeS3) {
	fake := newFakeS3()
	return newS3Store(fake, fake, "pages", prefix), fake
}

func TestS3Store_KeyLayout(t *testing.T) {
	checksum := pv.Hash([]byte("hello"))

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: checksum[:2] + "/" + checksum},
		{prefix: "prod", want: "prod/" + checksum[:2] + "/" + checksum},
		{prefix: "prod/site/", want: "prod/site/" + checksum[:2] + "/" + checksum},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			s, _ := newTestS3Store(tt.prefix)
			if got := s.keyFor(checksum); got != tt.want {
				t.Errorf("keyFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3Store_PutGetHas(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestS3Store("blobs")

	data := "<h1>hello</h1>"
	checksum := pv.Hash([]byte(data))

	if ok, err := s.Has(ctx, checksum); err != nil || ok {
		t.Fatalf("Has() before Put = %v, %v; want false, nil", ok, err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Put(ctx, checksum, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put() #%d error = %v", i+1, err)
		}
	}
	if fake.uploads != 1 {
		t.Errorf("uploads = %d, want 1", fake.uploads)
	}

	if ok, err := s.Has(ctx, checksum); err != nil || !ok {
		t.Fatalf("Has() after Put = %v, %v; want true, nil", ok, err)
	}

	var buf bytes.Buffer
	if err := s.Get(ctx, checksum, &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("Get() = %q, want %q", buf.String(), data)
	}
}

func TestS3Store_GetNotFound(t *testing.T) {
	s, _ := newTestS3Store("")

	var buf bytes.Buffer
	err := s.Get(context.Background(), pv.Hash([]byte("missing")), &buf)
	if !errors.Is(err, pv.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestS3Store_HasStorageError(t *testing.T) {
	s, fake := newTestS3Store("")
	fake.headErr = errors.New("connection reset")

	_, err := s.Has(context.Background(), pv.Hash([]byte("x")))
	if !errors.Is(err, pv.ErrStorage) {
		t.Errorf("Has() error = %v, want ErrStorage", err)
	}
}

func TestS3Store_ValidateSetup(t *testing.T) {
	s, fake := newTestS3Store("")
	if err := s.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	other := newS3Store(fake, fake, "missing-bucket", "")
	if err := other.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.BlobsConfig{Type: "s3"})
	if err == nil {
		t.Fatal("NewS3Store() expected error without bucket")
	}
}
