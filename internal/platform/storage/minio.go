package storage

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imagine/internal/config"
	"imagine/internal/domain/photo"
)

// MinIOClient hosts photo bytes in an S3-compatible bucket
type MinIOClient struct {
	client     *minio.Client
	bucketName string
	region     string
	publicURL  string
}

var _ photo.ImageHost = (*MinIOClient)(nil)

// NewMinIOClient connects to the object store and creates the bucket when it
// is missing
func NewMinIOClient(ctx context.Context, cfg config.StorageConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentialsFor(cfg),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client for %s: %w", cfg.Endpoint, err)
	}

	base := cfg.PublicURL
	if base == "" {
		base = "http://" + cfg.Endpoint
		if cfg.UseSSL {
			base = "https://" + cfg.Endpoint
		}
	}

	m := &MinIOClient{
		client:     client,
		bucketName: cfg.BucketName,
		region:     cmp.Or(cfg.Region, defaultRegion),
		publicURL:  strings.TrimRight(base, "/"),
	}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cfg.BucketName, err)
	}
	return m, nil
}

const defaultRegion = "us-east-1"

// credentialsFor uses the configured key pair, or the ambient AWS chain
// (environment, shared credentials file, instance role) when either half is
// missing
func credentialsFor(cfg config.StorageConfig) *credentials.Credentials {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})
}

func (m *MinIOClient) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil || exists {
		return err
	}
	return m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: m.region})
}

// Upload stores data under publicID and returns the object's public URL
func (m *MinIOClient) Upload(ctx context.Context, publicID string, data io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, publicID, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", publicID, err)
	}
	return m.ObjectURL(publicID), nil
}

// Download opens the object stored under publicID
func (m *MinIOClient) Download(ctx context.Context, publicID string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, publicID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", publicID, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller reads
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close() //nolint:errcheck // already failing
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: object %s", photo.ErrNotFound, publicID)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", publicID, err)
	}

	return obj, nil
}

// Delete removes the object stored under publicID; a missing object is not
// an error
func (m *MinIOClient) Delete(ctx context.Context, publicID string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	return nil
}

// ObjectURL builds the public URL for publicID
func (m *MinIOClient) ObjectURL(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return m.publicURL + "/" + m.bucketName + "/" + strings.Join(segments, "/")
}

// Health reports whether the bucket can be reached and still exists
func (m *MinIOClient) Health(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	switch {
	case err != nil:
		return fmt.Errorf("object store: %w", err)
	case !exists:
		return fmt.Errorf("object store: bucket %s is gone", m.bucketName)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
