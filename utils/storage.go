package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/princinho/sahoassist/config"
	"google.golang.org/api/option"
)

// ObjectStore keeps uploaded images and generated exports.
type ObjectStore interface {
	// Put stores body under key and returns the URL (or path) it can be read from.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Ping(ctx context.Context) error
	Name() string
}

// NewObjectStore builds the store selected by STORAGE_DRIVER. It returns nil for "none".
func NewObjectStore(ctx context.Context, cfg config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageR2:
		return NewR2Client(ctx, cfg)
	case config.StorageGCS:
		return NewGCSClient(ctx, cfg)
	case config.StorageLocal:
		return NewLocalStore(cfg.LocalStorageDir, cfg.PublicAPIURL+"/files"), nil
	default:
		return nil, nil
	}
}

// ObjectKey builds a unique object name under prefix.
func ObjectKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%d-%s%s", strings.Trim(prefix, "/"), time.Now().UTC().Unix(), uuid.New().String(), ext)
}

// R2Client wraps the S3 client + bucket name for Cloudflare R2.
type R2Client struct {
	S3           *s3.Client
	Bucket       string
	PublicDomain string
}

func NewR2Client(ctx context.Context, cfg config.Config) (*R2Client, error) {
	if cfg.R2Bucket == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2Endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Client{S3: client, Bucket: cfg.R2Bucket, PublicDomain: strings.TrimRight(cfg.R2PublicDomain, "/")}, nil
}

func (r *R2Client) Name() string { return "r2" }

func (r *R2Client) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := r.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", r.PublicDomain, r.Bucket, key), nil
}

func (r *R2Client) Ping(ctx context.Context) error {
	_, err := r.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.Bucket)})
	return err
}

// GCSClient stores objects in a Google Cloud Storage bucket.
type GCSClient struct {
	Client *storage.Client
	Bucket string
}

func NewGCSClient(ctx context.Context, cfg config.Config) (*GCSClient, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		path := cfg.CredentialsFile
		if !filepath.IsAbs(path) {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(wd, path)
		}
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, path))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSClient{Client: client, Bucket: cfg.GCSBucket}, nil
}

func (g *GCSClient) Name() string { return "gcs" }

func (g *GCSClient) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	w := g.Client.Bucket(g.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.Bucket, key), nil
}

func (g *GCSClient) Ping(ctx context.Context) error {
	_, err := g.Client.Bucket(g.Bucket).Attrs(ctx)
	return err
}

// LocalStore writes objects below a directory on disk.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (l *LocalStore) Name() string { return "local" }

func (l *LocalStore) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	path := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if l.BaseURL == "" {
		return path, nil
	}
	return l.BaseURL + "/" + key, nil
}

// Ping checks the directory is writable.
func (l *LocalStore) Ping(_ context.Context) error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(l.Dir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
