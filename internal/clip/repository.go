// Package clip holds the clip domain: identifiers, the relational repository
// and the retrieval/cleanup service.
package clip

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clipshare-gateway/internal/models"
)

// Repository is the narrow contract over the clip store. Every read filters
// out logically-expired rows, so an expired clip behaves exactly like a
// missing one.
type Repository interface {
	Create(ctx context.Context, clip *models.Clip) error
	FindByID(ctx context.Context, clipID string) (*models.Clip, error)
	FindQuickShareFlag(ctx context.Context, clipID string) (exists bool, quickShare bool, err error)
	FindAccessRequirement(ctx context.Context, clipID string) (exists bool, requiresCode bool, err error)
	FindAccessCodeHash(ctx context.Context, clipID string) (exists bool, requiresCode bool, hash string, err error)
	MarkAccessed(ctx context.Context, clipID string) error
	Delete(ctx context.Context, clipID string) error
	FindExpired(ctx context.Context, limit int) ([]*models.Clip, error)
	DeleteExpired(ctx context.Context, clipID string) error
	CountActive(ctx context.Context) (int64, error)
}

// SQLRepository implements Repository over database/sql. Placeholders are
// written as $N, which both lib/pq and mattn/go-sqlite3 bind positionally, so
// the same queries serve Postgres and the SQLite dev fallback.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// EnsureSchema applies the clips DDL. Schema migration tooling is out of
// scope; the table is small enough to bootstrap in place.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS clips (
			clip_id              VARCHAR(10) PRIMARY KEY,
			content              BYTEA,
			file_path            TEXT NOT NULL DEFAULT '',
			filename             TEXT NOT NULL DEFAULT '',
			content_type         TEXT NOT NULL DEFAULT '',
			filesize             BIGINT NOT NULL DEFAULT 0,
			is_file              BOOLEAN NOT NULL DEFAULT FALSE,
			expiration_time      TIMESTAMP NOT NULL,
			one_time             BOOLEAN NOT NULL DEFAULT FALSE,
			quick_share          BOOLEAN NOT NULL DEFAULT FALSE,
			requires_access_code BOOLEAN NOT NULL DEFAULT FALSE,
			access_code_hash     TEXT NOT NULL DEFAULT '',
			has_password         BOOLEAN NOT NULL DEFAULT FALSE,
			access_count         INTEGER NOT NULL DEFAULT 0,
			created_at           TIMESTAMP NOT NULL,
			accessed_at          TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("ensure clips schema: %w", err)
	}
	return nil
}

// Create persists a new clip, enforcing the model invariants before touching
// the store: quick-share clips never require a code, and a required code
// always comes with a stored hash.
func (r *SQLRepository) Create(ctx context.Context, clip *models.Clip) error {
	if clip.QuickShare && clip.RequiresAccessCode {
		return ErrInvariantViolation
	}
	if clip.RequiresAccessCode != (clip.AccessCodeHash != "") {
		return ErrInvariantViolation
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (
			clip_id, content, file_path, filename, content_type, filesize,
			is_file, expiration_time, one_time, quick_share,
			requires_access_code, access_code_hash, has_password,
			access_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14)`,
		clip.ClipID, clip.Content, clip.FilePath, clip.Filename,
		clip.ContentType, clip.Filesize, clip.IsFile, clip.ExpirationTime,
		clip.OneTime, clip.QuickShare, clip.RequiresAccessCode,
		clip.AccessCodeHash, clip.HasPassword, clip.CreatedAt)
	if err != nil {
		return fmt.Errorf("create clip: %w", err)
	}
	return nil
}

func (r *SQLRepository) FindByID(ctx context.Context, clipID string) (*models.Clip, error) {
	var clip models.Clip
	var accessedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT clip_id, content, file_path, filename, content_type, filesize,
		       is_file, expiration_time, one_time, quick_share,
		       requires_access_code, access_code_hash, has_password,
		       access_count, created_at, accessed_at
		FROM clips
		WHERE clip_id = $1 AND expiration_time > $2`,
		clipID, time.Now().UTC()).Scan(
		&clip.ClipID, &clip.Content, &clip.FilePath, &clip.Filename,
		&clip.ContentType, &clip.Filesize, &clip.IsFile, &clip.ExpirationTime,
		&clip.OneTime, &clip.QuickShare, &clip.RequiresAccessCode,
		&clip.AccessCodeHash, &clip.HasPassword, &clip.AccessCount,
		&clip.CreatedAt, &accessedAt)
	if err == sql.ErrNoRows {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find clip: %w", err)
	}

	if accessedAt.Valid {
		clip.AccessedAt = &accessedAt.Time
	}
	return &clip, nil
}

func (r *SQLRepository) FindQuickShareFlag(ctx context.Context, clipID string) (bool, bool, error) {
	var quickShare bool
	err := r.db.QueryRowContext(ctx, `
		SELECT quick_share FROM clips
		WHERE clip_id = $1 AND expiration_time > $2`,
		clipID, time.Now().UTC()).Scan(&quickShare)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("find quick share flag: %w", err)
	}
	return true, quickShare, nil
}

func (r *SQLRepository) FindAccessRequirement(ctx context.Context, clipID string) (bool, bool, error) {
	var requiresCode bool
	err := r.db.QueryRowContext(ctx, `
		SELECT requires_access_code FROM clips
		WHERE clip_id = $1 AND expiration_time > $2`,
		clipID, time.Now().UTC()).Scan(&requiresCode)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("find access requirement: %w", err)
	}
	return true, requiresCode, nil
}

func (r *SQLRepository) FindAccessCodeHash(ctx context.Context, clipID string) (bool, bool, string, error) {
	var requiresCode bool
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT requires_access_code, access_code_hash FROM clips
		WHERE clip_id = $1 AND expiration_time > $2`,
		clipID, time.Now().UTC()).Scan(&requiresCode, &hash)
	if err == sql.ErrNoRows {
		return false, false, "", nil
	}
	if err != nil {
		return false, false, "", fmt.Errorf("find access code hash: %w", err)
	}
	return true, requiresCode, hash, nil
}

func (r *SQLRepository) MarkAccessed(ctx context.Context, clipID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET access_count = access_count + 1, accessed_at = $1
		WHERE clip_id = $2`,
		time.Now().UTC(), clipID)
	if err != nil {
		return fmt.Errorf("mark accessed: %w", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, clipID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clips WHERE clip_id = $1`, clipID)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	return nil
}

// FindExpired returns logically-expired clips so the sweep can remove their
// stored files before deleting the rows.
func (r *SQLRepository) FindExpired(ctx context.Context, limit int) ([]*models.Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT clip_id, file_path, is_file FROM clips
		WHERE expiration_time <= $1
		LIMIT $2`,
		time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("find expired clips: %w", err)
	}
	defer rows.Close()

	var clips []*models.Clip
	for rows.Next() {
		var clip models.Clip
		if err := rows.Scan(&clip.ClipID, &clip.FilePath, &clip.IsFile); err != nil {
			return nil, fmt.Errorf("scan expired clip: %w", err)
		}
		clips = append(clips, &clip)
	}
	return clips, rows.Err()
}

// DeleteExpired removes a row regardless of its expiration filter; used only
// by the sweep after the stored file is gone.
func (r *SQLRepository) DeleteExpired(ctx context.Context, clipID string) error {
	return r.Delete(ctx, clipID)
}

func (r *SQLRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clips WHERE expiration_time > $1`,
		time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active clips: %w", err)
	}
	return count, nil
}
