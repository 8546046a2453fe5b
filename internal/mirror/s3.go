package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"safeop/internal/config"
	"safeop/internal/safeop"
)

// DefaultTimeout applies to each S3 request when the config sets none.
const DefaultTimeout = 30 * time.Second

// s3API is the subset of the S3 client the mirror uses. The upload half is
// what manager.Uploader needs for single and multipart uploads.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Mirror stores artifacts as objects under <prefix>/<artifact name>.
type S3Mirror struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	timeout  time.Duration
}

var _ safeop.Mirror = (*S3Mirror)(nil)

// NewS3Mirror builds an S3 client from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain
// applies (environment, shared config, instance role).
func NewS3Mirror(ctx context.Context, cfg config.MirrorConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3_bucket required for s3 mirror")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return newS3Mirror(client, cfg.S3Bucket, cfg.S3Prefix, timeout), nil
}

func newS3Mirror(client s3API, bucket, prefix string, timeout time.Duration) *S3Mirror {
	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		timeout:  timeout,
	}
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *S3Mirror) Put(key string, r io.Reader, size int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading %s (%d bytes): %w", key, size, err)
	}
	return nil
}

func (m *S3Mirror) Get(key string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(key)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return &safeop.NotFoundError{What: "mirrored backup", Path: m.key(key)}
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (m *S3Mirror) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
