package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clipshare-gateway/internal/config"
	"github.com/clipshare-gateway/internal/models"
	"github.com/clipshare-gateway/internal/session"
	"github.com/clipshare-gateway/internal/upload"
)

func handleInitUpload(uploadService *upload.CompletionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.InitUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		resp, err := uploadService.InitUpload(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, upload.ErrTooManyChunks) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize upload"})
			return
		}

		c.JSON(http.StatusCreated, resp)
	}
}

func handleUploadChunk(uploadService *upload.CompletionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		uploadID := c.Param("uploadId")
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chunk index"})
			return
		}

		if cfg.Upload.MaxChunkSize > 0 && c.Request.ContentLength > cfg.Upload.MaxChunkSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Chunk too large"})
			return
		}

		resp, err := uploadService.SaveChunk(c.Request.Context(), uploadID, index, c.Request.Body, c.Request.ContentLength)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Upload session not found"})
			case errors.Is(err, upload.ErrInvalidChunkIndex):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chunk index"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save chunk"})
			}
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func handleUploadStatus(uploadService *upload.CompletionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := uploadService.Status(c.Request.Context(), c.Param("uploadId"))
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Upload session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get upload status"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func handleCompleteUpload(uploadService *upload.CompletionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// the body is optional: clips without a code complete with nothing
		var req models.CompleteUploadRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
				return
			}
		}

		resp, err := uploadService.CompleteUpload(c.Request.Context(), c.Param("uploadId"), &req)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Upload session not found"})
			case errors.Is(err, upload.ErrUploadIncomplete):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, upload.ErrInvalidAccessCode):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid access code"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete upload"})
			}
			return
		}

		c.JSON(http.StatusCreated, resp)
	}
}
