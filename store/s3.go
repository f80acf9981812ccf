package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/logger"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/retry"
)

// S3Store keeps JSON-encoded records in an S3-compatible bucket. Suited to
// sharing a record cache across hosts without running a database.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	retry  retry.BackoffConfig
}

// NewS3Store connects to the configured endpoint and verifies the bucket
// exists.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if cfg.Trace {
		client.TraceOn(nil)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	prefix := strings.Trim(cfg.KeyPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	logger.Info("connected to S3 record store",
		"endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "prefix", prefix)

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		retry:  retry.DefaultBackoffConfig(),
	}, nil
}

func (s *S3Store) Backend() string { return "s3" }

func (s *S3Store) objectName(key string) string {
	return s.prefix + key + ".json"
}

func (s *S3Store) keyFromObject(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, s.prefix), ".json")
}

func (s *S3Store) Put(ctx context.Context, key string, rec msgset.Record) (err error) {
	defer func(start time.Time) { observe("s3", "put", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}
	if err = validateRecord(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}

	name := s.objectName(key)
	err = retry.WithRetry(ctx, func() error {
		_, putErr := s.client.PutObject(ctx, s.bucket, name,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/json", SendContentMd5: true})
		return putErr
	}, s.retry)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", consts.ErrS3UploadFailed, key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (rec msgset.Record, err error) {
	defer func(start time.Time) { observe("s3", "get", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return msgset.Record{}, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		err = fmt.Errorf("failed to fetch record %q: %w", key, err)
		return msgset.Record{}, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			err = fmt.Errorf("%w: %q", consts.ErrRecordNotFound, key)
			return msgset.Record{}, err
		}
		err = fmt.Errorf("failed to read record %q: %w", key, err)
		return msgset.Record{}, err
	}

	if err = json.Unmarshal(data, &rec); err != nil {
		err = fmt.Errorf("corrupt record %q: %w", key, err)
		return msgset.Record{}, err
	}
	if err = validateRecord(rec); err != nil {
		return msgset.Record{}, err
	}
	return rec, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { observe("s3", "delete", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}

	name := s.objectName(key)
	// RemoveObject succeeds for missing keys; stat first so missing
	// records surface as not-found like the other backends.
	_, err = s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %q", consts.ErrRecordNotFound, key)
		}
		return fmt.Errorf("failed to stat record %q: %w", key, err)
	}

	if err = s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete record %q: %w", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { observe("s3", "list", start, err) }(time.Now())

	opts := minio.ListObjectsOptions{
		Prefix:    s.prefix + prefix,
		Recursive: true,
	}
	for object := range s.client.ListObjects(ctx, s.bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list records: %w", object.Err)
		}
		if !strings.HasSuffix(object.Key, ".json") {
			continue
		}
		keys = append(keys, s.keyFromObject(object.Key))
	}
	return keys, nil
}

func (s *S3Store) Close() error { return nil }

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}
