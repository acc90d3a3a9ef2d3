package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vibedocs/internal/documents"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an endpoint is configured.
func (c S3Config) Enabled() bool { return strings.TrimSpace(c.Endpoint) != "" }

// S3ConfigFromEnv reads VIBEDOCS_S3_* variables. Credentials fall back to
// the MinIO root user.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:  strings.TrimSpace(os.Getenv("VIBEDOCS_S3_ENDPOINT")),
		Region:    firstNonEmpty(os.Getenv("VIBEDOCS_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv("VIBEDOCS_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(os.Getenv("VIBEDOCS_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(os.Getenv("VIBEDOCS_S3_BUCKET"), "vibedocs"),
		UseSSL:    parseBool(os.Getenv("VIBEDOCS_S3_USE_SSL")),
	}
}

// S3Exporter uploads a document set as <runID>/<FILE>.md objects.
type S3Exporter struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Exporter(cfg S3Config) (*S3Exporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := firstNonEmpty(cfg.Region, "us-east-1")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Exporter{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Exporter) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Upload stores every document and returns the object keys in order.
func (s *S3Exporter) Upload(ctx context.Context, runID string, docs map[documents.Key]string) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("exporter is nil")
	}
	runID = strings.Trim(strings.TrimSpace(runID), "/")
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	keys := make([]string, 0, documents.Count)
	for _, f := range Files(docs) {
		key := objectKey(runID, f.Name)
		body := []byte(f.Content)
		_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "text/markdown; charset=utf-8",
		})
		if err != nil {
			return keys, fmt.Errorf("put %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func objectKey(runID, name string) string {
	return runID + "/" + strings.TrimLeft(name, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
