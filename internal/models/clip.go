package models

import "time"

// Clip is one shareable unit of content: either inline encrypted text
// (Content) or a pointer to an assembled file object (FilePath). The server
// only ever holds ciphertext and one-way hashes.
type Clip struct {
	ClipID             string     `json:"clip_id"`
	Content            []byte     `json:"-"`
	FilePath           string     `json:"-"`
	Filename           string     `json:"filename,omitempty"`
	ContentType        string     `json:"content_type,omitempty"`
	Filesize           int64      `json:"filesize,omitempty"`
	IsFile             bool       `json:"is_file"`
	ExpirationTime     time.Time  `json:"expiration_time"`
	OneTime            bool       `json:"one_time"`
	QuickShare         bool       `json:"quick_share"`
	RequiresAccessCode bool       `json:"requires_access_code"`
	AccessCodeHash     string     `json:"-"`
	HasPassword        bool       `json:"has_password"`
	AccessCount        int        `json:"access_count"`
	CreatedAt          time.Time  `json:"created_at"`
	AccessedAt         *time.Time `json:"accessed_at,omitempty"`
}

// CreateClipRequest creates a text clip. Content is the base64-encoded
// encrypted payload produced by the browser; AccessCodeHash, when set, must
// already be the 128-hex-char hash.
type CreateClipRequest struct {
	Content        string `json:"content" binding:"required"`
	ExpiresIn      int    `json:"expires_in"` // minutes
	OneTime        bool   `json:"one_time"`
	QuickShare     bool   `json:"quick_share"`
	HasPassword    bool   `json:"has_password"`
	AccessCodeHash string `json:"access_code_hash"`
}

type CreateClipResponse struct {
	ClipID    string    `json:"clip_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	OneTime   bool      `json:"one_time"`
}

// AccessClipRequest carries the pre-hashed access code for retrieval.
type AccessClipRequest struct {
	AccessCodeHash string `json:"access_code_hash"`
}

type ClipContentResponse struct {
	ClipID      string     `json:"clip_id"`
	Content     string     `json:"content,omitempty"` // base64 encrypted payload
	IsFile      bool       `json:"is_file"`
	Filename    string     `json:"filename,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Filesize    int64      `json:"filesize,omitempty"`
	OneTime     bool       `json:"one_time"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AccessedAt  *time.Time `json:"accessed_at,omitempty"`
}

// ClipInfoResponse is the pre-retrieval probe: enough for the client to
// decide whether to prompt for a code, nothing sensitive.
type ClipInfoResponse struct {
	ClipID             string `json:"clip_id"`
	Exists             bool   `json:"exists"`
	RequiresAccessCode bool   `json:"requires_access_code"`
}

// StatsResponse is the admin aggregate view.
type StatsResponse struct {
	ActiveClips      int64 `json:"active_clips"`
	CompletedUploads int64 `json:"completed_uploads"`
	UploadedBytes    int64 `json:"uploaded_bytes"`
}
