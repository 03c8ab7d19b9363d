package models

import "time"

// UploadSession is the transient state of an in-progress chunked upload. It
// lives in Redis under the session TTL; incomplete sessions are swept by
// expiry, not by completion-path logic.
type UploadSession struct {
	UploadID         string    `json:"upload_id"`
	OriginalFilename string    `json:"original_filename"`
	Filesize         int64     `json:"filesize"`
	MimeType         string    `json:"mime_type"`
	TotalChunks      int       `json:"total_chunks"`
	UploadedChunks   int       `json:"uploaded_chunks"`
	IsTextContent    bool      `json:"is_text_content"`
	Expiration       time.Time `json:"expiration"`
	OneTime          bool      `json:"one_time"`
	QuickShare       bool      `json:"quick_share"`
	HasPassword      bool      `json:"has_password"`
	CreatedAt        time.Time `json:"created_at"`
}

type InitUploadRequest struct {
	Filename      string `json:"filename" binding:"required"`
	Filesize      int64  `json:"filesize" binding:"required,min=1"`
	MimeType      string `json:"mime_type"`
	TotalChunks   int    `json:"total_chunks" binding:"required,min=1"`
	IsTextContent bool   `json:"is_text_content"`
	ExpiresIn     int    `json:"expires_in"` // minutes
	OneTime       bool   `json:"one_time"`
	QuickShare    bool   `json:"quick_share"`
	HasPassword   bool   `json:"has_password"`
}

type InitUploadResponse struct {
	UploadID    string    `json:"upload_id"`
	TotalChunks int       `json:"total_chunks"`
	ExpiresAt   time.Time `json:"expires_at"`

	// QuickShareSecret is the server-generated ephemeral encryption secret
	// for quick-share uploads. It is returned once and never stored.
	QuickShareSecret string `json:"quick_share_secret,omitempty"`
}

type ChunkResponse struct {
	UploadID       string `json:"upload_id"`
	ChunkIndex     int    `json:"chunk_index"`
	UploadedChunks int    `json:"uploaded_chunks"`
	TotalChunks    int    `json:"total_chunks"`
	Complete       bool   `json:"complete"`
}

type UploadStatusResponse struct {
	UploadID       string    `json:"upload_id"`
	Filename       string    `json:"filename"`
	UploadedChunks int       `json:"uploaded_chunks"`
	TotalChunks    int       `json:"total_chunks"`
	Complete       bool      `json:"complete"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// CompleteUploadRequest finishes an upload. AccessCodeHash is optional and
// must already be hashed client-side; quick-share sessions received their
// secret at initiation and complete with an empty body.
type CompleteUploadRequest struct {
	AccessCodeHash string `json:"access_code_hash"`
}

type CompleteUploadResponse struct {
	ClipID     string    `json:"clip_id"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	Filesize   int64     `json:"filesize"`
	ExpiresAt  time.Time `json:"expires_at"`
	OneTime    bool      `json:"one_time"`
	QuickShare bool      `json:"quick_share"`
}
