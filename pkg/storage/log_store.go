package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "sfincsrun/configs"
)

// New builds the store selected by cfg.Kind. It returns ErrDisabled when
// publishing is not configured.
func New(ctx context.Context, cfg appconfig.StoreConfig) (ArtifactStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "":
		return nil, ErrDisabled
	case "local":
		if cfg.LocalDir == "" {
			return nil, errors.New("local store requires a directory")
		}
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// S3Store stores logs and archives in S3-compatible storage
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3StoreConfig holds S3 configuration
type S3StoreConfig struct {
	Bucket          string
	Prefix          string // e.g., "sfincs/"
	Region          string
	Endpoint        string // For MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Store creates a new S3-backed store
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store requires a bucket")
	}

	optFns := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store uploads run logs to S3
func (s *S3Store) Store(ctx context.Context, runID string, logs []byte) (string, error) {
	key := s.logKey(runID, time.Now())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(logs),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload log to S3: %w", err)
	}
	return s.reference(key), nil
}

// Retrieve fetches logs from S3
func (s *S3Store) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(extractKey(reference)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return nil, fmt.Errorf("failed to get log from S3: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return data, nil
}

// StoreArchive uploads a scenario archive to S3
func (s *S3Store) StoreArchive(ctx context.Context, key string, archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	fullKey := s.prefix + path.Join("archives", key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to S3: %w", err)
	}
	return s.reference(fullKey), nil
}

func (s *S3Store) logKey(runID string, now time.Time) string {
	return fmt.Sprintf("%slogs/%s/%s.log", s.prefix, now.Format("2006/01/02"), runID)
}

func (s *S3Store) reference(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// extractKey strips the s3://bucket/ part of a reference.
func extractKey(reference string) string {
	if rest, ok := strings.CutPrefix(reference, "s3://"); ok {
		if _, key, found := strings.Cut(rest, "/"); found {
			return key
		}
	}
	return reference
}

// LocalStore keeps artifacts on the local filesystem (shared drives, single host)
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local filesystem store
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Store saves logs to local filesystem
func (l *LocalStore) Store(ctx context.Context, runID string, logs []byte) (string, error) {
	dir := filepath.Join(l.basePath, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	p := filepath.Join(dir, runID+".log")
	if err := os.WriteFile(p, logs, 0644); err != nil {
		return "", fmt.Errorf("failed to write log: %w", err)
	}
	return p, nil
}

// Retrieve fetches logs from local filesystem
func (l *LocalStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	data, err := os.ReadFile(reference)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reference)
	}
	return data, err
}

// StoreArchive copies an archive below the store directory
func (l *LocalStore) StoreArchive(ctx context.Context, key string, archivePath string) (string, error) {
	dst := filepath.Join(l.basePath, "archives", filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	src, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return dst, nil
}
