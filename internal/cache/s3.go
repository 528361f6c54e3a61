package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/fwiesel/pip-accel/internal/config"
	"github.com/fwiesel/pip-accel/internal/fsutil"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Uploader interface {
	UploadObject(ctx context.Context, input *transfermanager.UploadObjectInput, optFns ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error)
}

// S3Backend stores distribution archives in an S3 bucket with the same
// read-through and error semantics as the Swift backend: reads fall back to
// the binary cache and swallow remote failures, writes propagate them.
type S3Backend struct {
	cfg *config.Provider
	dir string
	log *logrus.Entry

	api      s3API
	uploader s3Uploader
	timeout  time.Duration
	dial     func(ctx context.Context, b *S3Backend) (s3API, s3Uploader, error)
}

func NewS3Backend(cfg *config.Provider, log *logrus.Logger) (*S3Backend, error) {
	dir, err := cfg.BinaryCacheDir()
	if err != nil {
		return nil, err
	}
	b := &S3Backend{
		cfg:  cfg,
		dir:  dir,
		log:  log.WithField("backend", "s3"),
		dial: dialS3,
	}
	if raw := cfg.Get("s3_cache_timeout", "PIP_ACCEL_S3_TIMEOUT", ""); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("s3_cache_timeout must be a non-negative number of seconds, got %q", raw)
		}
		b.timeout = time.Duration(seconds) * time.Second
	}
	return b, nil
}

func (b *S3Backend) Name() string  { return "s3" }
func (b *S3Backend) Priority() int { return S3Priority }

func (b *S3Backend) Get(filename string) (string, error) {
	if err := ValidFilename(filename); err != nil {
		return "", err
	}

	pathname := filepath.Join(b.dir, filename)
	if info, err := os.Stat(pathname); err == nil && info.Mode().IsRegular() {
		b.log.Debugf("Distribution archive exists in local cache (%s).", pathname)
		return pathname, nil
	}

	if err := b.connect(context.Background()); err != nil {
		return "", err
	}
	if err := fsutil.MakeDirs(filepath.Dir(pathname)); err != nil {
		return "", err
	}

	key := b.CacheKey(filename)
	b.log.Infof("Trying to get distribution archive from S3 bucket: %s", key)

	ctx, cancel := b.callContext()
	defer cancel()

	var remoteErr error
	err := fsutil.AtomicReplace(pathname, func(temporary string) error {
		var out *s3.GetObjectOutput
		out, remoteErr = b.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.Bucket()),
			Key:    aws.String(key),
		})
		if remoteErr != nil {
			return remoteErr
		}
		defer out.Body.Close()

		f, err := os.Create(temporary)
		if err != nil {
			return err
		}
		_, remoteErr = io.Copy(f, out.Body)
		closeErr := f.Close()
		if remoteErr != nil {
			return remoteErr
		}
		return closeErr
	})
	if remoteErr != nil {
		b.log.WithError(remoteErr).Debug("Distribution archive not available from S3 bucket.")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	b.log.Debug("Finished downloading distribution archive from S3 bucket.")
	return pathname, nil
}

func (b *S3Backend) Put(filename string, handle io.Reader) error {
	if err := ValidFilename(filename); err != nil {
		return err
	}
	if err := b.connect(context.Background()); err != nil {
		return err
	}

	ctx, cancel := b.callContext()
	defer cancel()

	_, err := b.uploader.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:      aws.String(b.Bucket()),
		Key:         aws.String(b.CacheKey(filename)),
		Body:        handle,
		ContentType: aws.String("application/binary"),
	})
	if err != nil {
		return fmt.Errorf("store distribution archive in S3 bucket: %w", err)
	}
	b.log.Debug("Finished caching distribution archive in S3 bucket.")
	return nil
}

func (b *S3Backend) CacheKey(filename string) string {
	return joinKey(b.Prefix(), filename)
}

func (b *S3Backend) Bucket() string {
	return b.cfg.Get("s3_cache_bucket", "PIP_ACCEL_S3_BUCKET", "")
}

func (b *S3Backend) Prefix() string {
	return b.cfg.Get("s3_cache_prefix", "PIP_ACCEL_S3_PREFIX", "")
}

func (b *S3Backend) Region() string {
	return b.cfg.Get("s3_cache_region", "PIP_ACCEL_S3_REGION", "")
}

// EndpointURL overrides the S3 endpoint for S3-compatible stores.
func (b *S3Backend) EndpointURL() string {
	return b.cfg.Get("s3_cache_url", "PIP_ACCEL_S3_URL", "")
}

func (b *S3Backend) connect(ctx context.Context) error {
	if b.api != nil && b.uploader != nil {
		return nil
	}
	api, uploader, err := b.dial(ctx, b)
	if err != nil {
		return &DisabledError{Backend: b.Name(), Err: err}
	}
	b.api = api
	b.uploader = uploader
	return nil
}

// callContext bounds one remote call when s3_cache_timeout is configured;
// otherwise the SDK's defaults apply.
func (b *S3Backend) callContext() (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(context.Background(), b.timeout)
	}
	return context.Background(), func() {}
}

func dialS3(ctx context.Context, b *S3Backend) (s3API, s3Uploader, error) {
	if b.Bucket() == "" {
		return nil, nil, fmt.Errorf("s3_cache_bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := b.Region(); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := b.EndpointURL(); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return client, transfermanager.New(client), nil
}
