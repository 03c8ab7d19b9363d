package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/models"
	"github.com/clipshare-gateway/internal/session"
)

// mockSessionStore is an in-memory SessionStore. Like the Redis store it
// tracks distinct chunk indices, not receipts.
type mockSessionStore struct {
	sessions map[string]*models.UploadSession
	indices  map[string]map[int]bool

	statsCalls int
	statsErr   error
	deletedIDs []string
	deleteErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions: make(map[string]*models.UploadSession),
		indices:  make(map[string]map[int]bool),
	}
}

func (m *mockSessionStore) CreateSession(ctx context.Context, sess *models.UploadSession) error {
	m.sessions[sess.UploadID] = sess
	return nil
}

func (m *mockSessionStore) GetSession(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	sess, ok := m.sessions[uploadID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	copied := *sess
	copied.UploadedChunks = len(m.indices[uploadID])
	return &copied, nil
}

func (m *mockSessionStore) RecordChunk(ctx context.Context, uploadID string, index int) (int, error) {
	if m.indices[uploadID] == nil {
		m.indices[uploadID] = make(map[int]bool)
	}
	m.indices[uploadID][index] = true
	return len(m.indices[uploadID]), nil
}

func (m *mockSessionStore) UpdateStatistics(ctx context.Context, sess *models.UploadSession, filesize int64) error {
	m.statsCalls++
	return m.statsErr
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, uploadID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, uploadID)
	m.deletedIDs = append(m.deletedIDs, uploadID)
	return nil
}

// mockChunkStore is an in-memory ChunkStore.
type mockChunkStore struct {
	chunks map[string][]byte // key: uploadID/index
	files  map[string][]byte

	assembleErr   error
	chunksDeleted []string
	filesDeleted  []string
}

func newMockChunkStore() *mockChunkStore {
	return &mockChunkStore{
		chunks: make(map[string][]byte),
		files:  make(map[string][]byte),
	}
}

func (m *mockChunkStore) key(uploadID string, index int) string {
	return fmt.Sprintf("%s/%06d", uploadID, index)
}

func (m *mockChunkStore) PutChunk(ctx context.Context, uploadID string, index int, reader io.Reader, size int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.chunks[m.key(uploadID, index)] = data
	return nil
}

func (m *mockChunkStore) AssembleChunks(ctx context.Context, uploadID string, totalChunks int, targetPath, contentType string) (int64, error) {
	if m.assembleErr != nil {
		return 0, m.assembleErr
	}
	var assembled []byte
	for i := 0; i < totalChunks; i++ {
		data, ok := m.chunks[m.key(uploadID, i)]
		if !ok {
			return 0, fmt.Errorf("chunk %d missing", i)
		}
		assembled = append(assembled, data...)
	}
	m.files[targetPath] = assembled
	return int64(len(assembled)), nil
}

func (m *mockChunkStore) StatFile(ctx context.Context, path string) (int64, error) {
	data, ok := m.files[path]
	if !ok {
		return 0, fmt.Errorf("file %s not found", path)
	}
	return int64(len(data)), nil
}

func (m *mockChunkStore) DeleteChunks(ctx context.Context, uploadID string) error {
	m.chunksDeleted = append(m.chunksDeleted, uploadID)
	return nil
}

func (m *mockChunkStore) DeleteFile(ctx context.Context, path string) error {
	m.filesDeleted = append(m.filesDeleted, path)
	return nil
}

// mockClipCreator records created clips.
type mockClipCreator struct {
	created   []*models.Clip
	createErr error
}

func (m *mockClipCreator) Create(ctx context.Context, clip *models.Clip) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, clip)
	return nil
}

func newTestCompletionService(t *testing.T) (*CompletionService, *mockSessionStore, *mockChunkStore, *mockClipCreator) {
	t.Helper()
	logger := logrus.New()
	tokens, err := access.NewTokenService("upload-test-salt", logger)
	require.NoError(t, err)

	sessions := newMockSessionStore()
	chunks := newMockChunkStore()
	clips := &mockClipCreator{}
	assembly := NewAssemblyService(chunks, logger)

	svc := NewCompletionService(sessions, assembly, chunks, clips, tokens, "https://clips.example.com", logger)
	return svc, sessions, chunks, clips
}

func initSession(t *testing.T, svc *CompletionService, req *models.InitUploadRequest) *models.InitUploadResponse {
	t.Helper()
	resp, err := svc.InitUpload(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func uploadAllChunks(t *testing.T, svc *CompletionService, uploadID string, chunks []string) {
	t.Helper()
	for i, data := range chunks {
		_, err := svc.SaveChunk(context.Background(), uploadID, i, strings.NewReader(data), int64(len(data)))
		require.NoError(t, err)
	}
}

func TestInitUpload(t *testing.T) {
	svc, sessions, _, _ := newTestCompletionService(t)

	resp := initSession(t, svc, &models.InitUploadRequest{
		Filename:    "report.pdf",
		Filesize:    1024,
		MimeType:    "application/pdf",
		TotalChunks: 3,
		ExpiresIn:   120,
	})

	assert.NotEmpty(t, resp.UploadID)
	assert.Equal(t, 3, resp.TotalChunks)
	assert.Empty(t, resp.QuickShareSecret)

	sess, err := sessions.GetSession(context.Background(), resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", sess.OriginalFilename)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), sess.Expiration, time.Minute)
}

func TestInitUpload_QuickShareSecret(t *testing.T) {
	svc, _, _, _ := newTestCompletionService(t)

	resp := initSession(t, svc, &models.InitUploadRequest{
		Filename:    "note.txt",
		Filesize:    64,
		TotalChunks: 1,
		QuickShare:  true,
	})
	assert.NotEmpty(t, resp.QuickShareSecret)

	other := initSession(t, svc, &models.InitUploadRequest{
		Filename:    "note.txt",
		Filesize:    64,
		TotalChunks: 1,
		QuickShare:  true,
	})
	assert.NotEqual(t, resp.QuickShareSecret, other.QuickShareSecret)
}

func TestInitUpload_TooManyChunks(t *testing.T) {
	svc, _, _, _ := newTestCompletionService(t)

	_, err := svc.InitUpload(context.Background(), &models.InitUploadRequest{
		Filename:    "big.bin",
		Filesize:    1 << 40,
		TotalChunks: maxChunksPerUpload + 1,
	})
	assert.ErrorIs(t, err, ErrTooManyChunks)
}

func TestSaveChunk(t *testing.T) {
	svc, _, _, _ := newTestCompletionService(t)

	resp := initSession(t, svc, &models.InitUploadRequest{
		Filename:    "data.bin",
		Filesize:    10,
		TotalChunks: 2,
	})

	t.Run("OutOfOrderArrival", func(t *testing.T) {
		second, err := svc.SaveChunk(context.Background(), resp.UploadID, 1, strings.NewReader("world"), 5)
		require.NoError(t, err)
		assert.False(t, second.Complete)
		assert.Equal(t, 1, second.UploadedChunks)

		first, err := svc.SaveChunk(context.Background(), resp.UploadID, 0, strings.NewReader("hello"), 5)
		require.NoError(t, err)
		assert.True(t, first.Complete)
		assert.Equal(t, 2, first.UploadedChunks)
	})

	t.Run("RetransmitDoesNotInflateCount", func(t *testing.T) {
		again, err := svc.SaveChunk(context.Background(), resp.UploadID, 0, strings.NewReader("hello"), 5)
		require.NoError(t, err)
		assert.Equal(t, 2, again.UploadedChunks, "a re-sent chunk must not count twice")
		assert.True(t, again.Complete)
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		_, err := svc.SaveChunk(context.Background(), resp.UploadID, 2, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrInvalidChunkIndex)

		_, err = svc.SaveChunk(context.Background(), resp.UploadID, -1, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrInvalidChunkIndex)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		_, err := svc.SaveChunk(context.Background(), "no-such-upload", 0, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestCompleteUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, sessions, chunks, clips := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "archive.zip",
			Filesize:    999, // client lies about the size
			MimeType:    "application/zip",
			TotalChunks: 3,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"aaaa", "bbbb", "cc"})

		done, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.NoError(t, err)

		assert.Len(t, done.ClipID, 10)
		assert.Equal(t, "https://clips.example.com/file/"+done.ClipID, done.URL)
		assert.Equal(t, int64(10), done.Filesize, "size must come from the assembled file, not the client")

		require.Len(t, clips.created, 1)
		created := clips.created[0]
		assert.True(t, created.IsFile)
		assert.Equal(t, "files/"+resp.UploadID, created.FilePath)
		assert.False(t, created.RequiresAccessCode)

		// assembled file has the chunks in index order
		assert.Equal(t, []byte("aaaabbbbcc"), chunks.files["files/"+resp.UploadID])

		// cleanup ran after persistence
		assert.Contains(t, chunks.chunksDeleted, resp.UploadID)
		assert.Contains(t, sessions.deletedIDs, resp.UploadID)
		assert.Equal(t, 1, sessions.statsCalls)
	})

	t.Run("SucceedsAfterChunkRetransmit", func(t *testing.T) {
		svc, _, _, clips := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "retried.bin",
			Filesize:    9,
			TotalChunks: 2,
		})

		// chunk 0 lands twice, as after a lost response
		_, err := svc.SaveChunk(ctx, resp.UploadID, 0, strings.NewReader("first"), 5)
		require.NoError(t, err)
		_, err = svc.SaveChunk(ctx, resp.UploadID, 0, strings.NewReader("first"), 5)
		require.NoError(t, err)
		saved, err := svc.SaveChunk(ctx, resp.UploadID, 1, strings.NewReader("rest"), 4)
		require.NoError(t, err)
		assert.True(t, saved.Complete)

		done, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(9), done.Filesize)
		assert.Len(t, clips.created, 1)
	})

	t.Run("TextContentURL", func(t *testing.T) {
		svc, _, _, _ := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:      "paste.txt",
			Filesize:      4,
			TotalChunks:   1,
			IsTextContent: true,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"text"})

		done, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.NoError(t, err)
		assert.Equal(t, "https://clips.example.com/clip/"+done.ClipID, done.URL)
	})

	t.Run("QuickShare", func(t *testing.T) {
		svc, _, _, clips := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "quick.bin",
			Filesize:    4,
			TotalChunks: 1,
			QuickShare:  true,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"data"})

		done, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.NoError(t, err)
		assert.Len(t, done.ClipID, 4)

		require.Len(t, clips.created, 1)
		assert.True(t, clips.created[0].QuickShare)
		assert.False(t, clips.created[0].RequiresAccessCode)
		assert.Empty(t, clips.created[0].AccessCodeHash)
	})

	t.Run("WithAccessCodeHash", func(t *testing.T) {
		svc, _, _, clips := newTestCompletionService(t)

		tokens, err := access.NewTokenService("upload-test-salt", logrus.New())
		require.NoError(t, err)
		hash, err := tokens.GenerateHash("secret-code")
		require.NoError(t, err)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "locked.bin",
			Filesize:    4,
			TotalChunks: 1,
			HasPassword: true,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"data"})

		_, err = svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{AccessCodeHash: hash})
		require.NoError(t, err)

		require.Len(t, clips.created, 1)
		assert.True(t, clips.created[0].RequiresAccessCode)
		assert.Equal(t, hash, clips.created[0].AccessCodeHash)
	})

	t.Run("PlaintextAccessCodeRejected", func(t *testing.T) {
		svc, _, _, clips := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "locked.bin",
			Filesize:    4,
			TotalChunks: 1,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"data"})

		_, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{AccessCodeHash: "plaintext"})
		assert.ErrorIs(t, err, ErrInvalidAccessCode)
		assert.Empty(t, clips.created)
	})

	t.Run("IncompleteUpload", func(t *testing.T) {
		svc, _, _, clips := newTestCompletionService(t)

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "partial.bin",
			Filesize:    100,
			TotalChunks: 10,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"a", "b", "c", "d", "e"})

		_, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUploadIncomplete)
		assert.Contains(t, err.Error(), "5/10 chunks uploaded")
		assert.Empty(t, clips.created, "no clip record may exist for an incomplete upload")
	})

	t.Run("SessionNotFound", func(t *testing.T) {
		svc, _, _, _ := newTestCompletionService(t)

		_, err := svc.CompleteUpload(ctx, "missing-upload", &models.CompleteUploadRequest{})
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("AssemblyFailureCreatesNoClip", func(t *testing.T) {
		svc, _, chunks, clips := newTestCompletionService(t)
		chunks.assembleErr = fmt.Errorf("disk full")

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "doomed.bin",
			Filesize:    4,
			TotalChunks: 1,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"data"})

		_, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.Error(t, err)
		assert.Empty(t, clips.created)
	})

	t.Run("StatsFailureIsNonFatal", func(t *testing.T) {
		svc, sessions, _, clips := newTestCompletionService(t)
		sessions.statsErr = fmt.Errorf("redis down")

		resp := initSession(t, svc, &models.InitUploadRequest{
			Filename:    "fine.bin",
			Filesize:    4,
			TotalChunks: 1,
		})
		uploadAllChunks(t, svc, resp.UploadID, []string{"data"})

		done, err := svc.CompleteUpload(ctx, resp.UploadID, &models.CompleteUploadRequest{})
		require.NoError(t, err)
		assert.NotEmpty(t, done.ClipID)
		assert.Len(t, clips.created, 1)
	})
}

func TestStatus(t *testing.T) {
	svc, _, _, _ := newTestCompletionService(t)

	resp := initSession(t, svc, &models.InitUploadRequest{
		Filename:    "tracked.bin",
		Filesize:    8,
		TotalChunks: 2,
	})

	status, err := svc.Status(context.Background(), resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.UploadedChunks)
	assert.False(t, status.Complete)

	uploadAllChunks(t, svc, resp.UploadID, []string{"1234", "5678"})

	status, err = svc.Status(context.Background(), resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.UploadedChunks)
	assert.True(t, status.Complete)
}

func TestAssemblyService_GetFileSize(t *testing.T) {
	chunks := newMockChunkStore()
	chunks.files["files/known"] = bytes.Repeat([]byte{0x1}, 42)

	svc := NewAssemblyService(chunks, logrus.New())

	size, err := svc.GetFileSize(context.Background(), "files/known")
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)

	_, err = svc.GetFileSize(context.Background(), "files/unknown")
	assert.Error(t, err)
}
