package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/clip"
	"github.com/clipshare-gateway/internal/models"
	"github.com/clipshare-gateway/internal/storage"
)

func handleCreateClip(clipService *clip.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateClipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		resp, err := clipService.CreateTextClip(c.Request.Context(), &req)
		if err != nil {
			switch {
			case errors.Is(err, clip.ErrEmptyContent), errors.Is(err, clip.ErrInvalidContent):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, clip.ErrInvalidAccessCode):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid access code"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create clip"})
			}
			return
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// handleClipInfo is the pre-retrieval probe: does the clip exist, and does it
// need an access code. It never reveals content or hashes.
func handleClipInfo(validator *access.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		clipID := c.Param("clipId")

		exists, requiresCode, err := validator.CheckAccessRequirement(c.Request.Context(), clipID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check clip"})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
			return
		}

		c.JSON(http.StatusOK, models.ClipInfoResponse{
			ClipID:             clipID,
			Exists:             true,
			RequiresAccessCode: requiresCode,
		})
	}
}

func handleAccessClip(validator *access.Validator, clipService *clip.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		clipID := c.Param("clipId")

		// the body is optional: clips without a code are accessed bare
		var req models.AccessClipRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
				return
			}
		}

		result := validator.ValidateAccess(c.Request.Context(), clipID, req.AccessCodeHash)
		if !result.Valid {
			c.JSON(result.StatusCode, gin.H{"error": result.Message})
			return
		}

		resp, err := clipService.RetrieveContent(c.Request.Context(), clipID)
		if err != nil {
			if errors.Is(err, clip.ErrClipNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve clip"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// handleDownloadFile streams an assembled file. The access code travels in the
// X-Access-Code header so the body stays free for the download stream.
func handleDownloadFile(validator *access.Validator, clipService *clip.Service, store *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		clipID := c.Param("clipId")
		accessCode := c.GetHeader("X-Access-Code")

		result := validator.ValidateAccess(c.Request.Context(), clipID, accessCode)
		if !result.Valid {
			c.JSON(result.StatusCode, gin.H{"error": result.Message})
			return
		}

		clipRecord, err := clipService.FindByID(c.Request.Context(), clipID)
		if err != nil {
			if errors.Is(err, clip.ErrClipNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve clip"})
			return
		}
		if !clipRecord.IsFile || clipRecord.FilePath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Clip is not a file"})
			return
		}

		reader, err := store.GetFile(c.Request.Context(), clipRecord.FilePath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve file"})
			return
		}
		defer reader.Close()

		// bookkeeping, not correctness
		_ = clipService.MarkAccessed(c.Request.Context(), clipID)

		contentType := clipRecord.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Disposition", `attachment; filename="`+clipRecord.Filename+`"`)
		c.DataFromReader(http.StatusOK, clipRecord.Filesize, contentType, reader, nil)

		clipService.DeleteAfterRead(clipRecord)
	}
}
