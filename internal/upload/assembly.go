// Package upload implements the chunked upload pipeline: initiation, chunk
// receipt, file assembly and the completion workflow that turns a finished
// session into a shareable clip.
package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/clipshare-gateway/internal/models"
)

// ChunkStore is the object-storage contract the pipeline needs.
type ChunkStore interface {
	PutChunk(ctx context.Context, uploadID string, index int, reader io.Reader, size int64) error
	AssembleChunks(ctx context.Context, uploadID string, totalChunks int, targetPath, contentType string) (int64, error)
	StatFile(ctx context.Context, path string) (int64, error)
	DeleteChunks(ctx context.Context, uploadID string) error
	DeleteFile(ctx context.Context, path string) error
}

// AssemblyService reassembles a completed chunked upload into a single
// durable object and reports its size.
type AssemblyService struct {
	chunks ChunkStore
	logger *logrus.Logger
}

func NewAssemblyService(chunks ChunkStore, logger *logrus.Logger) *AssemblyService {
	return &AssemblyService{chunks: chunks, logger: logger}
}

// AssembleFile concatenates the session's chunks 0..TotalChunks-1 in strict
// index order into one object and returns its path. Assembly happens before a
// clip ID exists, so the object is keyed by upload ID. Missing chunks or I/O
// failures abort the upload; there is no partial assembly.
func (s *AssemblyService) AssembleFile(ctx context.Context, uploadID string, sess *models.UploadSession) (string, error) {
	targetPath := "files/" + uploadID

	written, err := s.chunks.AssembleChunks(ctx, uploadID, sess.TotalChunks, targetPath, sess.MimeType)
	if err != nil {
		return "", fmt.Errorf("assemble upload %s: %w", uploadID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"upload_id": uploadID,
		"chunks":    sess.TotalChunks,
		"bytes":     written,
	}).Info("assembled upload")

	return targetPath, nil
}

// GetFileSize is a thin wrapper over the storage stat call; the underlying
// error propagates unchanged.
func (s *AssemblyService) GetFileSize(ctx context.Context, path string) (int64, error) {
	return s.chunks.StatFile(ctx, path)
}
