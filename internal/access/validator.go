package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// quickShareIDMaxLen is the clip-ID length at or below which the quick-share
// fast path is consulted first.
const quickShareIDMaxLen = 6

// ClipStore is the narrow read contract the validator needs. All queries
// filter out logically-expired records; an expired clip is indistinguishable
// from one that never existed.
type ClipStore interface {
	// FindQuickShareFlag reports whether the clip exists and carries the
	// quick-share flag.
	FindQuickShareFlag(ctx context.Context, clipID string) (exists bool, quickShare bool, err error)

	// FindAccessRequirement reports whether the clip exists and whether
	// retrieval requires an access code. It deliberately does not fetch the
	// hash, so the probe can be reused without touching sensitive data.
	FindAccessRequirement(ctx context.Context, clipID string) (exists bool, requiresCode bool, err error)

	// FindAccessCodeHash fetches the stored hash for actual validation.
	FindAccessCodeHash(ctx context.Context, clipID string) (exists bool, requiresCode bool, hash string, err error)
}

// Result is the authorization decision for one retrieval request.
type Result struct {
	Valid      bool
	StatusCode int
	Message    string
}

func authorized() Result {
	return Result{Valid: true, StatusCode: http.StatusOK}
}

func denied(status int, message string) Result {
	return Result{Valid: false, StatusCode: status, Message: message}
}

// Validator decides whether a retrieval request is authorized.
type Validator struct {
	store  ClipStore
	tokens *TokenService
	logger *logrus.Logger
}

func NewValidator(store ClipStore, tokens *TokenService, logger *logrus.Logger) *Validator {
	return &Validator{store: store, tokens: tokens, logger: logger}
}

// ValidateAccess runs the authorization state machine for clipID with an
// optional caller-supplied pre-hashed access code.
//
// Quick-share clips (short IDs, quick_share flag set) are always authorized by
// ID alone; their secrecy lives in the encryption secret embedded in the share
// link, not in server-side gating. Everything else goes through the
// existence/requirement check and, when a code is required, constant-time hash
// validation. The 404 for a missing clip never reveals whether it expired or
// whether a code would have been required.
func (v *Validator) ValidateAccess(ctx context.Context, clipID, accessCode string) Result {
	if len(clipID) <= quickShareIDMaxLen {
		exists, quickShare, err := v.store.FindQuickShareFlag(ctx, clipID)
		if err != nil {
			v.logger.WithError(err).WithField("clip_id", clipID).Error("quick share lookup failed")
			return denied(http.StatusInternalServerError, "Failed to validate access code")
		}
		if exists && quickShare {
			return authorized()
		}
	}

	exists, requiresCode, err := v.store.FindAccessRequirement(ctx, clipID)
	if err != nil {
		v.logger.WithError(err).WithField("clip_id", clipID).Error("access requirement lookup failed")
		return denied(http.StatusInternalServerError, "Failed to validate access code")
	}
	if !exists {
		return denied(http.StatusNotFound, "Clip not found")
	}
	if !requiresCode {
		return authorized()
	}

	if strings.TrimSpace(accessCode) == "" {
		return denied(http.StatusUnauthorized, "Access code required")
	}

	// Second, authoritative fetch. The clip may have been deleted between the
	// two queries (expiry sweep, one-time read); that is a 404, not a crash.
	exists, _, storedHash, err := v.store.FindAccessCodeHash(ctx, clipID)
	if err != nil {
		v.logger.WithError(err).WithField("clip_id", clipID).Error("access code hash lookup failed")
		return denied(http.StatusInternalServerError, "Failed to validate access code")
	}
	if !exists {
		return denied(http.StatusNotFound, "Clip not found")
	}
	if storedHash == "" {
		// requires_access_code without a stored hash is a data-integrity
		// fault; keep the caller-facing message vague.
		v.logger.WithField("clip_id", clipID).Error("clip requires access code but has no stored hash")
		return denied(http.StatusUnauthorized, "Invalid access code configuration")
	}

	if !v.tokens.ValidateAccessCode(accessCode, storedHash) {
		return denied(http.StatusUnauthorized, "Invalid access code")
	}

	return authorized()
}

// CheckAccessRequirement is the standalone probe used before retrieval,
// e.g. to decide whether to show a code prompt at all.
func (v *Validator) CheckAccessRequirement(ctx context.Context, clipID string) (exists bool, requiresCode bool, err error) {
	return v.store.FindAccessRequirement(ctx, clipID)
}
