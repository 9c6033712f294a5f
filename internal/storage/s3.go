package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/storafe/backend/internal/config"
	"github.com/storafe/backend/pkg/logger"
)

const presignExpiry = time.Hour

// S3Backend stores objects in an S3-compatible bucket. Keys take the form
// <ownerID>/<generated name>. Downloads hand out presigned GET URLs rather
// than streaming through the server.
type S3Backend struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	useSSL         bool
}

func NewS3Backend(cfg config.S3Config) (*S3Backend, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: cfg.PublicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (s *S3Backend) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Backend) Save(ctx context.Context, reader io.Reader, size int64, ownerID, originalName string) (Object, error) {
	name := generatedName(originalName)
	key := ownerID + "/" + name

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{})
	if err != nil {
		logger.Error("s3_save_failed", err, map[string]interface{}{
			"key":    key,
			"size":   size,
			"bucket": s.bucket,
		})
		return Object{}, err
	}

	logger.Info("s3_save_success", map[string]interface{}{
		"key":    key,
		"size":   size,
		"bucket": s.bucket,
	})
	return Object{Key: key, Name: name}, nil
}

func (s *S3Backend) SaveFromStaging(ctx context.Context, stagingPath, ownerID, originalName string) (Object, error) {
	name := generatedName(originalName)
	key := ownerID + "/" + name

	_, err := s.client.FPutObject(ctx, s.bucket, key, stagingPath, minio.PutObjectOptions{})
	if err != nil {
		logger.Error("s3_staging_upload_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return Object{}, err
	}
	os.Remove(stagingPath)

	logger.Info("s3_staging_upload_success", map[string]interface{}{
		"key":    key,
		"bucket": s.bucket,
	})
	return Object{Key: key, Name: name}, nil
}

func (s *S3Backend) Duplicate(ctx context.Context, key, ownerID, originalName string) (Object, error) {
	name := generatedName(originalName)
	destKey := ownerID + "/" + name

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: destKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: key},
	)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Object{}, ErrObjectMissing
		}
		logger.Error("s3_copy_failed", err, map[string]interface{}{
			"src_key":  key,
			"dest_key": destKey,
			"bucket":   s.bucket,
		})
		return Object{}, err
	}

	return Object{Key: destKey, Name: name}, nil
}

func (s *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("s3_open_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, 0, err
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrObjectMissing
		}
		logger.Error("s3_open_stat_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, 0, err
	}

	return obj, info.Size, nil
}

func (s *S3Backend) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("s3_delete_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
	}
	return err
}

func (s *S3Backend) DownloadRef(ctx context.Context, key, displayName string) (Ref, error) {
	query := make(url.Values)
	query.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", displayName))

	urlValue, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry, query)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Ref{}, ErrObjectMissing
		}
		return Ref{}, err
	}
	return Ref{URL: urlValue.String()}, nil
}

// MakePublic verifies the object exists. Anonymous reads are granted by the
// bucket policy on the public prefix, not per object; minio-go v7 carries no
// per-object ACL call.
func (s *S3Backend) MakePublic(ctx context.Context, key string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectMissing
		}
		return err
	}
	return nil
}

func (s *S3Backend) PublicURL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return scheme + "://" + s.publicEndpoint + "/" + path.Join(s.bucket, key)
}
