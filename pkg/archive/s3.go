package archive

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/awesomeDataTool/genie/pkg/gerr"
)

// S3Archiver implements Archiver against S3-compatible storage. Targets are
// s3://bucket/prefix URIs; each archived file becomes an object at
// prefix/relative-path.
type S3Archiver struct {
	client *minio.Client
}

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	Endpoint  string // host:port (e.g., "localhost:9000")
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewS3Archiver creates an archiver with the given configuration.
func NewS3Archiver(cfg S3Config) (*S3Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Archiver{client: client}, nil
}

// Archive uploads the source file or directory tree under the target URI.
func (a *S3Archiver) Archive(ctx context.Context, srcPath string, targetURI string) error {
	bucket, prefix, err := parseS3Target(targetURI)
	if err != nil {
		return gerr.New(gerr.CodeArchivalFailed, err)
	}

	entries, err := collect(srcPath)
	if err != nil {
		return gerr.New(gerr.CodeArchivalFailed, err)
	}

	for _, e := range entries {
		key := path.Join(prefix, filepath.ToSlash(e.rel))
		if _, err := a.client.FPutObject(ctx, bucket, key, e.abs, minio.PutObjectOptions{}); err != nil {
			return gerr.New(gerr.CodeArchivalFailed,
				fmt.Errorf("uploading %s to s3://%s/%s: %w", e.abs, bucket, key, err))
		}
	}
	return nil
}

func parseS3Target(targetURI string) (bucket, prefix string, err error) {
	u, err := url.Parse(targetURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid target uri %q: %w", targetURI, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("target uri %q: expected s3 scheme, got %q", targetURI, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("target uri %q: missing bucket", targetURI)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Ensure S3Archiver implements Archiver.
var _ Archiver = (*S3Archiver)(nil)
