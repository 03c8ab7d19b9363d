// Package storage wraps MinIO object storage: one bucket for in-flight upload
// chunks, one for assembled clip files.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/clipshare-gateway/internal/config"
)

type Service struct {
	client      *minio.Client
	chunkBucket string
	fileBucket  string
}

func NewService(cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Service{
		client:      client,
		chunkBucket: cfg.Storage.ChunkBucket,
		fileBucket:  cfg.Storage.FileBucket,
	}, nil
}

// EnsureBuckets creates both buckets if they do not exist yet.
func (s *Service) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.chunkBucket, s.fileBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// chunkKey addresses one chunk. Zero-padding keeps lexicographic listing in
// index order.
func chunkKey(uploadID string, index int) string {
	return fmt.Sprintf("%s/%06d", uploadID, index)
}

// PutChunk stores one chunk of an in-progress upload. Chunks may arrive in
// any order; assembly reads them back by index.
func (s *Service) PutChunk(ctx context.Context, uploadID string, index int, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.chunkBucket, chunkKey(uploadID, index), reader, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("put chunk %d: %w", index, err)
	}
	return nil
}

// AssembleChunks concatenates chunks 0..totalChunks-1 in strict index order
// into a single object at targetPath in the file bucket. Any missing chunk or
// read failure aborts the whole assembly: a clip must never be built from
// incomplete content.
func (s *Service) AssembleChunks(ctx context.Context, uploadID string, totalChunks int, targetPath, contentType string) (int64, error) {
	// fail fast before streaming anything
	var total int64
	for i := 0; i < totalChunks; i++ {
		info, err := s.client.StatObject(ctx, s.chunkBucket, chunkKey(uploadID, i), minio.StatObjectOptions{})
		if err != nil {
			return 0, fmt.Errorf("chunk %d missing: %w", i, err)
		}
		total += info.Size
	}

	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < totalChunks; i++ {
			obj, err := s.client.GetObject(ctx, s.chunkBucket, chunkKey(uploadID, i), minio.GetObjectOptions{})
			if err != nil {
				pw.CloseWithError(fmt.Errorf("read chunk %d: %w", i, err))
				return
			}
			if _, err := io.Copy(pw, obj); err != nil {
				obj.Close()
				pw.CloseWithError(fmt.Errorf("stream chunk %d: %w", i, err))
				return
			}
			obj.Close()
		}
		pw.Close()
	}()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.fileBucket, targetPath, pr, total, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("write assembled file: %w", err)
	}

	return total, nil
}

// StatFile returns the size of an assembled file. Errors propagate unchanged;
// this is a diagnostic read with no recovery policy of its own.
func (s *Service) StatFile(ctx context.Context, path string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.fileBucket, path, minio.StatObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// GetFile opens an assembled file for streaming to the client.
func (s *Service) GetFile(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.fileBucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return obj, nil
}

// DeleteFile removes an assembled file.
func (s *Service) DeleteFile(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.fileBucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// DeleteChunks bulk-removes every chunk belonging to an upload.
func (s *Service) DeleteChunks(ctx context.Context, uploadID string) error {
	objectsCh := make(chan minio.ObjectInfo)

	go func() {
		defer close(objectsCh)
		opts := minio.ListObjectsOptions{
			Prefix:    uploadID + "/",
			Recursive: true,
		}
		for object := range s.client.ListObjects(ctx, s.chunkBucket, opts) {
			if object.Err == nil {
				objectsCh <- object
			}
		}
	}()

	errCh := s.client.RemoveObjects(ctx, s.chunkBucket, objectsCh, minio.RemoveObjectsOptions{})
	for err := range errCh {
		if err.Err != nil {
			return fmt.Errorf("delete chunks: %w", err.Err)
		}
	}
	return nil
}
