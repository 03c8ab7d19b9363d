package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipshare-gateway/internal/auth"
	"github.com/clipshare-gateway/internal/clip"
	"github.com/clipshare-gateway/internal/models"
	"github.com/clipshare-gateway/internal/session"
)

func handleAdminLogin(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		token, err := authService.Login(req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrAdminNotConfigured):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access not configured"})
			case errors.Is(err, auth.ErrInvalidCredentials):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func handleAdminStats(repo clip.Repository, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeClips, err := repo.CountActive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
			return
		}

		completed, bytes, err := sessions.Statistics(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
			return
		}

		c.JSON(http.StatusOK, models.StatsResponse{
			ActiveClips:      activeClips,
			CompletedUploads: completed,
			UploadedBytes:    bytes,
		})
	}
}
