package upload

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/clip"
	"github.com/clipshare-gateway/internal/models"
)

const (
	defaultExpiryMinutes = 60
	maxExpiryMinutes     = 30 * 24 * 60
	maxChunksPerUpload   = 10000

	quickShareSecretBytes = 16
)

var (
	ErrUploadIncomplete  = Error("upload incomplete")
	ErrInvalidSession    = Error("upload session is malformed")
	ErrInvalidChunkIndex = Error("chunk index out of range")
	ErrInvalidAccessCode = Error("access code must be transmitted as a hash")
	ErrTooManyChunks     = Error("too many chunks")
)

type Error string

func (e Error) Error() string {
	return string(e)
}

// SessionStore is the transient session contract (Redis-backed in
// production).
type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.UploadSession) error
	GetSession(ctx context.Context, uploadID string) (*models.UploadSession, error)
	RecordChunk(ctx context.Context, uploadID string, index int) (int, error)
	UpdateStatistics(ctx context.Context, sess *models.UploadSession, filesize int64) error
	DeleteSession(ctx context.Context, uploadID string) error
}

// ClipCreator is the slice of the clip repository the completion workflow
// writes through.
type ClipCreator interface {
	Create(ctx context.Context, clip *models.Clip) error
}

// CompletionService orchestrates the upload lifecycle from initiation to the
// persisted clip.
type CompletionService struct {
	sessions SessionStore
	assembly *AssemblyService
	chunks   ChunkStore
	clips    ClipCreator
	tokens   *access.TokenService
	baseURL  string
	logger   *logrus.Logger
}

func NewCompletionService(
	sessions SessionStore,
	assembly *AssemblyService,
	chunks ChunkStore,
	clips ClipCreator,
	tokens *access.TokenService,
	baseURL string,
	logger *logrus.Logger,
) *CompletionService {
	return &CompletionService{
		sessions: sessions,
		assembly: assembly,
		chunks:   chunks,
		clips:    clips,
		tokens:   tokens,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// InitUpload creates a new upload session.
func (s *CompletionService) InitUpload(ctx context.Context, req *models.InitUploadRequest) (*models.InitUploadResponse, error) {
	if req.TotalChunks > maxChunksPerUpload {
		return nil, fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyChunks, req.TotalChunks, maxChunksPerUpload)
	}

	now := time.Now().UTC()
	sess := &models.UploadSession{
		UploadID:         uuid.New().String(),
		OriginalFilename: req.Filename,
		Filesize:         req.Filesize,
		MimeType:         req.MimeType,
		TotalChunks:      req.TotalChunks,
		IsTextContent:    req.IsTextContent,
		Expiration:       now.Add(expiryDuration(req.ExpiresIn)),
		OneTime:          req.OneTime,
		QuickShare:       req.QuickShare,
		HasPassword:      req.HasPassword,
		CreatedAt:        now,
	}

	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	resp := &models.InitUploadResponse{
		UploadID:    sess.UploadID,
		TotalChunks: sess.TotalChunks,
		ExpiresAt:   sess.Expiration,
	}

	if sess.QuickShare {
		secret, err := NewQuickShareSecret()
		if err != nil {
			return nil, err
		}
		resp.QuickShareSecret = secret
	}

	return resp, nil
}

// SaveChunk stores one chunk and records its index. Chunks may arrive in any
// order, and a retransmitted chunk (the normal client retry after a lost
// response) overwrites its object and leaves the distinct count unchanged.
func (s *CompletionService) SaveChunk(ctx context.Context, uploadID string, index int, reader io.Reader, size int64) (*models.ChunkResponse, error) {
	sess, err := s.sessions.GetSession(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= sess.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidChunkIndex, index, sess.TotalChunks)
	}

	if err := s.chunks.PutChunk(ctx, uploadID, index, reader, size); err != nil {
		return nil, err
	}

	count, err := s.sessions.RecordChunk(ctx, uploadID, index)
	if err != nil {
		return nil, err
	}

	return &models.ChunkResponse{
		UploadID:       uploadID,
		ChunkIndex:     index,
		UploadedChunks: count,
		TotalChunks:    sess.TotalChunks,
		Complete:       count >= sess.TotalChunks,
	}, nil
}

// Status reports upload progress.
func (s *CompletionService) Status(ctx context.Context, uploadID string) (*models.UploadStatusResponse, error) {
	sess, err := s.sessions.GetSession(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	return &models.UploadStatusResponse{
		UploadID:       sess.UploadID,
		Filename:       sess.OriginalFilename,
		UploadedChunks: sess.UploadedChunks,
		TotalChunks:    sess.TotalChunks,
		Complete:       sess.UploadedChunks >= sess.TotalChunks,
		ExpiresAt:      sess.Expiration,
	}, nil
}

// CompleteUpload runs the finish-this-upload workflow: validate the session
// and chunk count, assemble the file, measure it independently of the
// client-declared size, compute access-control metadata, persist the clip,
// then clean up. No clip is created unless assembly and access-control
// computation both succeed; cleanup failures after persistence are logged but
// never roll back the clip.
func (s *CompletionService) CompleteUpload(ctx context.Context, uploadID string, req *models.CompleteUploadRequest) (*models.CompleteUploadResponse, error) {
	sess, err := s.sessions.GetSession(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if sess.OriginalFilename == "" || sess.TotalChunks <= 0 {
		return nil, ErrInvalidSession
	}
	if sess.UploadedChunks < sess.TotalChunks {
		return nil, fmt.Errorf("%w: %d/%d chunks uploaded", ErrUploadIncomplete, sess.UploadedChunks, sess.TotalChunks)
	}

	filePath, err := s.assembly.AssembleFile(ctx, uploadID, sess)
	if err != nil {
		return nil, err
	}

	// never trust the client-declared size
	filesize, err := s.assembly.GetFileSize(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("measure assembled file: %w", err)
	}

	clipID, err := clip.NewClipID(sess.QuickShare)
	if err != nil {
		return nil, err
	}

	accessCodeHash, err := s.accessCodeHash(sess, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.Clip{
		ClipID:             clipID,
		FilePath:           filePath,
		Filename:           sess.OriginalFilename,
		ContentType:        sess.MimeType,
		Filesize:           filesize,
		IsFile:             true,
		ExpirationTime:     sess.Expiration,
		OneTime:            sess.OneTime,
		QuickShare:         sess.QuickShare,
		RequiresAccessCode: accessCodeHash != "",
		AccessCodeHash:     accessCodeHash,
		HasPassword:        sess.HasPassword,
		CreatedAt:          now,
	}

	if err := s.clips.Create(ctx, record); err != nil {
		return nil, err
	}

	// from here on the clip is the valuable artifact; nothing below may
	// fail the request
	if err := s.sessions.UpdateStatistics(ctx, sess, filesize); err != nil {
		s.logger.WithError(err).WithField("upload_id", uploadID).Warn("failed to update upload statistics")
	}
	if err := s.chunks.DeleteChunks(ctx, uploadID); err != nil {
		s.logger.WithError(err).WithField("upload_id", uploadID).Warn("failed to delete upload chunks")
	}
	if err := s.sessions.DeleteSession(ctx, uploadID); err != nil {
		s.logger.WithError(err).WithField("upload_id", uploadID).Warn("failed to delete upload session")
	}

	s.logger.WithFields(logrus.Fields{
		"upload_id": uploadID,
		"clip_id":   clipID,
		"filesize":  filesize,
	}).Info("upload completed")

	return &models.CompleteUploadResponse{
		ClipID:     clipID,
		URL:        s.shareURL(sess, clipID),
		Filename:   sess.OriginalFilename,
		Filesize:   filesize,
		ExpiresAt:  sess.Expiration,
		OneTime:    sess.OneTime,
		QuickShare: sess.QuickShare,
	}, nil
}

// accessCodeHash computes the stored hash for the new clip. Quick-share clips
// never require a code; their secret, when the client did not pre-generate
// one, is created server-side, which is the only place plaintext hashing is
// legitimate. All other codes must arrive already hashed.
func (s *CompletionService) accessCodeHash(sess *models.UploadSession, req *models.CompleteUploadRequest) (string, error) {
	if sess.QuickShare {
		return "", nil
	}

	if req.AccessCodeHash != "" {
		if !s.tokens.IsAlreadyHashed(req.AccessCodeHash) {
			return "", ErrInvalidAccessCode
		}
		return req.AccessCodeHash, nil
	}

	return "", nil
}

// NewQuickShareSecret generates a server-originated ephemeral secret for
// quick-share links. The client encrypts against it; the server never stores
// it.
func NewQuickShareSecret() (string, error) {
	raw := make([]byte, quickShareSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate quick share secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// shareURL picks the path by content class: true file uploads live under
// /file, text-as-file uploads under /clip.
func (s *CompletionService) shareURL(sess *models.UploadSession, clipID string) string {
	if sess.IsTextContent {
		return s.baseURL + "/clip/" + clipID
	}
	return s.baseURL + "/file/" + clipID
}

func expiryDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = defaultExpiryMinutes
	}
	if minutes > maxExpiryMinutes {
		minutes = maxExpiryMinutes
	}
	return time.Duration(minutes) * time.Minute
}
