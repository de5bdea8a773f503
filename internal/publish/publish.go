// Package publish uploads finished archives to S3 compatible object storage.
package publish

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const contentType = "application/vnd.sqlite3"

var (
	ErrEndpointMustBeSet = errors.New("publish endpoint must be set")
	ErrBucketMustBeSet   = errors.New("publish bucket must be set")
	ErrBucketMissing     = errors.New("publish bucket does not exist")
)

// Config locates the bucket archives are published to. Publishing is disabled while Endpoint is empty.
type Config struct {
	Endpoint     string `koanf:"endpoint"`
	Bucket       string `koanf:"bucket"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	UseSSL       bool   `koanf:"use_ssl"`
	Region       string `koanf:"region"`
	Prefix       string `koanf:"prefix"`
	CreateBucket bool   `koanf:"create_bucket"`
}

// Enabled reports whether archives should be published.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return ErrEndpointMustBeSet
	}

	if c.Bucket == "" {
		return ErrBucketMustBeSet
	}

	return nil
}

// ObjectKey names the object of the archive at path under prefix.
func ObjectKey(prefix, archive string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(archive)
	}

	return path.Join(prefix, filepath.Base(archive))
}

// ObjectClient is the part of the MinIO client used to publish.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads archives to a bucket.
type Publisher struct {
	client ObjectClient
	cfg    Config
	logger *slog.Logger
}

// New creates a Publisher talking to the MinIO or S3 endpoint of cfg.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create object storage client for %s", cfg.Endpoint)
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Publisher using client.
func NewWithClient(client ObjectClient, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{client: client, cfg: cfg, logger: logger}
}

// Publish uploads the archive at archive and returns its s3:// location.
func (p *Publisher) Publish(ctx context.Context, archive string) (string, error) {
	err := p.ensureBucket(ctx)
	if err != nil {
		return "", err
	}

	key := ObjectKey(p.cfg.Prefix, archive)

	info, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, archive, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "unable to upload %s", archive)
	}

	p.logger.Info("archive published",
		slog.String("bucket", p.cfg.Bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)

	return "s3://" + p.cfg.Bucket + "/" + key, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return errors.Wrapf(err, "unable to check bucket %s", p.cfg.Bucket)
	}

	if exists {
		return nil
	}

	if !p.cfg.CreateBucket {
		return errors.Wrap(ErrBucketMissing, p.cfg.Bucket)
	}

	err = p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region})
	if err != nil {
		return errors.Wrapf(err, "unable to create bucket %s", p.cfg.Bucket)
	}

	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var _ ObjectClient = (*minio.Client)(nil)
