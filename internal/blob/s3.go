package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pagevault/internal/config"
	"pagevault/internal/pv"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// s3Uploader is the subset of *manager.Uploader used by S3Store.
type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store keeps blobs as objects in an S3 bucket under
// <prefix>/<checksum[:2]>/<checksum>. Uploads go through the multipart
// upload manager so large pages stream without buffering.
type S3Store struct {
	client   s3API
	uploader s3Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates an S3Store from config. Credentials come from the
// config when set and from the default AWS chain otherwise.
func NewS3Store(ctx context.Context, cfg config.BlobsConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, manager.NewUploader(client), cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Store(client s3API, uploader s3Uploader, bucket, prefix string) *S3Store {
	return &S3Store{client: client, uploader: uploader, bucket: bucket, prefix: prefix}
}

func (s *S3Store) keyFor(checksum string) string {
	return path.Join(s.prefix, checksum[:2], checksum)
}

// Put uploads content unless an object already exists for checksum.
func (s *S3Store) Put(ctx context.Context, checksum string, r io.Reader, size int64) error {
	if !pv.ValidHash(checksum) {
		return fmt.Errorf("invalid checksum %q", checksum)
	}

	exists, err := s.Has(ctx, checksum)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	cr := &countingReader{r: r}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(checksum)),
		Body:   cr,
	})
	if err != nil {
		return pv.NewStorageError("uploading blob", err)
	}
	if cr.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n)
	}
	return nil
}

// Get downloads the object for checksum into w.
func (s *S3Store) Get(ctx context.Context, checksum string, w io.Writer) error {
	if !pv.ValidHash(checksum) {
		return fmt.Errorf("%w: content %q", pv.ErrNotFound, checksum)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(checksum)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: content %s", pv.ErrNotFound, checksum)
		}
		return pv.NewStorageError("downloading blob", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return pv.NewStorageError("reading blob", err)
	}
	return nil
}

// Has reports whether an object exists for checksum.
func (s *S3Store) Has(ctx context.Context, checksum string) (bool, error) {
	if !pv.ValidHash(checksum) {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(checksum)),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, pv.NewStorageError("checking blob", err)
}

// ValidateSetup verifies that the bucket is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

// isS3NotFound reports whether err means the object does not exist.
// GetObject reports NoSuchKey; HeadObject has no body and reports NotFound.
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
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

var _ pv.BlobStore = (*S3Store)(nil)
