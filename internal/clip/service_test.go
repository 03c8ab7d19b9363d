package clip

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/models"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	mu    sync.Mutex
	clips map[string]*models.Clip

	createErr error
	deleted   []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{clips: make(map[string]*models.Clip)}
}

func (m *mockRepo) Create(ctx context.Context, clip *models.Clip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if clip.QuickShare && clip.RequiresAccessCode {
		return ErrInvariantViolation
	}
	m.clips[clip.ClipID] = clip
	return nil
}

func (m *mockRepo) FindByID(ctx context.Context, clipID string) (*models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return nil, ErrClipNotFound
	}
	return clip, nil
}

func (m *mockRepo) FindQuickShareFlag(ctx context.Context, clipID string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return false, false, nil
	}
	return true, clip.QuickShare, nil
}

func (m *mockRepo) FindAccessRequirement(ctx context.Context, clipID string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return false, false, nil
	}
	return true, clip.RequiresAccessCode, nil
}

func (m *mockRepo) FindAccessCodeHash(ctx context.Context, clipID string) (bool, bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return false, false, "", nil
	}
	return true, clip.RequiresAccessCode, clip.AccessCodeHash, nil
}

func (m *mockRepo) MarkAccessed(ctx context.Context, clipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clip, ok := m.clips[clipID]; ok {
		clip.AccessCount++
		now := time.Now().UTC()
		clip.AccessedAt = &now
	}
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, clipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clips, clipID)
	m.deleted = append(m.deleted, clipID)
	return nil
}

func (m *mockRepo) FindExpired(ctx context.Context, limit int) ([]*models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []*models.Clip
	for _, clip := range m.clips {
		if !clip.ExpirationTime.After(time.Now().UTC()) {
			expired = append(expired, clip)
		}
	}
	return expired, nil
}

func (m *mockRepo) DeleteExpired(ctx context.Context, clipID string) error {
	return m.Delete(ctx, clipID)
}

func (m *mockRepo) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.clips)), nil
}

func (m *mockRepo) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockFileStore struct {
	mu      sync.Mutex
	deleted []string
}

func (m *mockFileStore) DeleteFile(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockFileStore) {
	t.Helper()
	logger := logrus.New()
	tokens, err := access.NewTokenService("clip-service-test-salt", logger)
	require.NoError(t, err)
	repo := newMockRepo()
	files := &mockFileStore{}
	return NewService(repo, tokens, files, "https://clips.example.com", logger), repo, files
}

func encryptedContent(t *testing.T, size int) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(make([]byte, size))
}

func TestCreateTextClip(t *testing.T) {
	ctx := context.Background()

	t.Run("StandardClip", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		resp, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content:   encryptedContent(t, 64),
			ExpiresIn: 30,
		})
		require.NoError(t, err)
		assert.Len(t, resp.ClipID, StandardIDLength)
		assert.Equal(t, "https://clips.example.com/clip/"+resp.ClipID, resp.URL)

		stored, err := repo.FindByID(ctx, resp.ClipID)
		require.NoError(t, err)
		assert.False(t, stored.RequiresAccessCode)
		assert.Empty(t, stored.AccessCodeHash)
	})

	t.Run("QuickShareClip", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		resp, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content:    encryptedContent(t, 64),
			QuickShare: true,
		})
		require.NoError(t, err)
		assert.Len(t, resp.ClipID, QuickShareIDLength)

		stored, err := repo.FindByID(ctx, resp.ClipID)
		require.NoError(t, err)
		assert.True(t, stored.QuickShare)
		assert.False(t, stored.RequiresAccessCode)
	})

	t.Run("WithAccessCodeHash", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		tokens, err := access.NewTokenService("clip-service-test-salt", logrus.New())
		require.NoError(t, err)
		hash, err := tokens.GenerateHash("the-code")
		require.NoError(t, err)

		resp, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content:        encryptedContent(t, 64),
			AccessCodeHash: hash,
		})
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, resp.ClipID)
		require.NoError(t, err)
		assert.True(t, stored.RequiresAccessCode)
		assert.Equal(t, hash, stored.AccessCodeHash)
	})

	t.Run("PlaintextAccessCodeRejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content:        encryptedContent(t, 64),
			AccessCodeHash: "plaintext-code",
		})
		assert.ErrorIs(t, err, ErrInvalidAccessCode)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{})
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("UndersizedContent", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content: encryptedContent(t, 8),
		})
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("InvalidBase64", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content: "!!not base64!!",
		})
		assert.ErrorIs(t, err, ErrInvalidContent)
	})
}

func TestRetrieveContent(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsContentAndBumpsCount", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		created, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content: encryptedContent(t, 64),
		})
		require.NoError(t, err)

		resp, err := svc.RetrieveContent(ctx, created.ClipID)
		require.NoError(t, err)
		assert.Equal(t, encryptedContent(t, 64), resp.Content)

		stored, err := repo.FindByID(ctx, created.ClipID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.AccessCount)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.RetrieveContent(ctx, "MISSING123")
		assert.ErrorIs(t, err, ErrClipNotFound)
	})

	t.Run("OneTimeClipDeletedAfterRead", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		created, err := svc.CreateTextClip(ctx, &models.CreateClipRequest{
			Content: encryptedContent(t, 64),
			OneTime: true,
		})
		require.NoError(t, err)

		resp, err := svc.RetrieveContent(ctx, created.ClipID)
		require.NoError(t, err)
		assert.True(t, resp.OneTime)

		// deletion is fire-and-forget; give the goroutine a moment
		assert.Eventually(t, func() bool {
			for _, id := range repo.deletedIDs() {
				if id == created.ClipID {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)
	})
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	svc, repo, files := newTestService(t)

	expired := &models.Clip{
		ClipID:         "EXPIRED123",
		IsFile:         true,
		FilePath:       "files/EXPIRED123",
		ExpirationTime: time.Now().UTC().Add(-time.Hour),
		CreatedAt:      time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, expired))

	live := &models.Clip{
		ClipID:         "LIVECLIP12",
		ExpirationTime: time.Now().UTC().Add(time.Hour),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, live))

	svc.cleanupExpired(ctx)

	assert.Contains(t, repo.deletedIDs(), "EXPIRED123")
	assert.NotContains(t, repo.deletedIDs(), "LIVECLIP12")
	assert.Contains(t, files.deleted, "files/EXPIRED123")
}
