package clip

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/cryptox"
	"github.com/clipshare-gateway/internal/models"
)

const (
	defaultExpiryMinutes = 60
	maxExpiryMinutes     = 30 * 24 * 60

	cleanupBatchSize = 100
)

var (
	ErrClipNotFound       = Error("clip not found")
	ErrEmptyContent       = Error("content must not be empty")
	ErrInvalidContent     = Error("content is not a valid encrypted payload")
	ErrInvalidAccessCode  = Error("access code must be transmitted as a hash")
	ErrInvariantViolation = Error("clip invariants violated")
)

type Error string

func (e Error) Error() string {
	return string(e)
}

// FileStore is the slice of object storage the service needs: removing the
// durable file behind a deleted clip.
type FileStore interface {
	DeleteFile(ctx context.Context, path string) error
}

// Service creates and retrieves text clips and owns clip deletion (one-time
// reads and the expiry sweep).
type Service struct {
	repo    Repository
	tokens  *access.TokenService
	files   FileStore
	baseURL string
	logger  *logrus.Logger
}

func NewService(repo Repository, tokens *access.TokenService, files FileStore, baseURL string, logger *logrus.Logger) *Service {
	return &Service{
		repo:    repo,
		tokens:  tokens,
		files:   files,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CreateTextClip persists a client-encrypted text clip. The content arrives
// base64-encoded; an access code, when present, must already be hashed.
func (s *Service) CreateTextClip(ctx context.Context, req *models.CreateClipRequest) (*models.CreateClipResponse, error) {
	if req.Content == "" {
		return nil, ErrEmptyContent
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return nil, ErrInvalidContent
	}
	if !cryptox.LooksEncrypted(content) {
		// legacy unencrypted clips are accepted, everything below the
		// heuristic threshold is rejected as malformed
		return nil, ErrInvalidContent
	}

	accessCodeHash := req.AccessCodeHash
	if accessCodeHash != "" && !s.tokens.IsAlreadyHashed(accessCodeHash) {
		return nil, ErrInvalidAccessCode
	}
	if req.QuickShare {
		// quick-share clips are gated by their link secret, never by a code
		accessCodeHash = ""
	}

	clipID, err := NewClipID(req.QuickShare)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	clip := &models.Clip{
		ClipID:             clipID,
		Content:            content,
		IsFile:             false,
		ExpirationTime:     now.Add(expiryDuration(req.ExpiresIn)),
		OneTime:            req.OneTime,
		QuickShare:         req.QuickShare,
		RequiresAccessCode: accessCodeHash != "",
		AccessCodeHash:     accessCodeHash,
		HasPassword:        req.HasPassword,
		CreatedAt:          now,
	}

	if err := s.repo.Create(ctx, clip); err != nil {
		return nil, err
	}

	return &models.CreateClipResponse{
		ClipID:    clipID,
		URL:       s.baseURL + "/clip/" + clipID,
		ExpiresAt: clip.ExpirationTime,
		OneTime:   clip.OneTime,
	}, nil
}

// RetrieveContent loads an already-authorized clip, bumps its bookkeeping and
// schedules one-time deletion. Authorization happens in the access validator
// before this is called.
func (s *Service) RetrieveContent(ctx context.Context, clipID string) (*models.ClipContentResponse, error) {
	clip, err := s.repo.FindByID(ctx, clipID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkAccessed(ctx, clipID); err != nil {
		// bookkeeping, not correctness
		s.logger.WithError(err).WithField("clip_id", clipID).Warn("failed to mark clip accessed")
	}

	resp := &models.ClipContentResponse{
		ClipID:      clip.ClipID,
		IsFile:      clip.IsFile,
		Filename:    clip.Filename,
		ContentType: clip.ContentType,
		Filesize:    clip.Filesize,
		OneTime:     clip.OneTime,
		ExpiresAt:   clip.ExpirationTime,
		AccessedAt:  clip.AccessedAt,
	}
	if !clip.IsFile {
		resp.Content = base64.StdEncoding.EncodeToString(clip.Content)
	}

	if clip.OneTime {
		s.deleteOneTime(clip)
	}

	return resp, nil
}

// FindByID exposes the repository read for the download path.
func (s *Service) FindByID(ctx context.Context, clipID string) (*models.Clip, error) {
	return s.repo.FindByID(ctx, clipID)
}

// MarkAccessed exposes the bookkeeping write for the download path.
func (s *Service) MarkAccessed(ctx context.Context, clipID string) error {
	return s.repo.MarkAccessed(ctx, clipID)
}

// DeleteAfterRead schedules one-time deletion for a clip served outside
// RetrieveContent (file downloads).
func (s *Service) DeleteAfterRead(clip *models.Clip) {
	if clip.OneTime {
		s.deleteOneTime(clip)
	}
}

// deleteOneTime removes a one-time clip fire-and-forget: the reader's
// response must never wait on the deletion.
func (s *Service) deleteOneTime(clip *models.Clip) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if clip.IsFile && clip.FilePath != "" {
			if err := s.files.DeleteFile(ctx, clip.FilePath); err != nil {
				s.logger.WithError(err).WithField("clip_id", clip.ClipID).Error("failed to delete one-time clip file")
			}
		}
		if err := s.repo.Delete(ctx, clip.ClipID); err != nil {
			s.logger.WithError(err).WithField("clip_id", clip.ClipID).Error("failed to delete one-time clip")
		}
	}()
}

// RunCleanup sweeps expired clips until ctx is cancelled.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) cleanupExpired(ctx context.Context) {
	expired, err := s.repo.FindExpired(ctx, cleanupBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("failed to list expired clips")
		return
	}

	for _, clip := range expired {
		if clip.IsFile && clip.FilePath != "" {
			if err := s.files.DeleteFile(ctx, clip.FilePath); err != nil {
				s.logger.WithError(err).WithField("clip_id", clip.ClipID).Error("failed to delete expired clip file")
				continue
			}
		}
		if err := s.repo.DeleteExpired(ctx, clip.ClipID); err != nil {
			s.logger.WithError(err).WithField("clip_id", clip.ClipID).Error("failed to delete expired clip")
		}
	}

	if len(expired) > 0 {
		s.logger.WithField("count", len(expired)).Info("swept expired clips")
	}
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
