package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// Admin handlers

func (api *API) adminListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := api.repo.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Join each profile with its live quota snapshot. A store outage leaves
	// the quota field null rather than hiding the user list.
	type userWithQuota struct {
		*models.User
		Quota *models.QuotaSnapshot `json:"quota"`
	}

	enriched := make([]userWithQuota, 0, len(users))
	for _, u := range users {
		snapshot, err := api.quota.GetQuota(c.Request.Context(), u.ID)
		if err != nil {
			snapshot = nil
		}
		enriched = append(enriched, userWithQuota{User: u, Quota: snapshot})
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  enriched,
		"limit":  limit,
		"offset": offset,
	})
}

func (api *API) adminGetUserQuota(c *gin.Context) {
	userID := c.Param("id")

	if _, err := api.repo.GetUserByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	snapshot, err := api.quota.GetQuota(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, quota.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Quota service temporarily unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quota"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"videos_used":  snapshot.VideosUsed,
		"videos_total": snapshot.VideosTotal,
		"remaining":    snapshot.Remaining(),
		"week_start":   snapshot.WeekStart,
	})
}

func (api *API) adminSetUserCredits(c *gin.Context) {
	userID := c.Param("id")

	var req struct {
		Credits *int64 `json:"credits" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := api.repo.GetUserByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := api.quota.SetAllowance(c.Request.Context(), userID, *req.Credits); err != nil {
		switch {
		case errors.Is(err, quota.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Quota service temporarily unavailable"})
		case errors.Is(err, quota.ErrInvalidUser):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"credits": *req.Credits,
	})
}

func (api *API) adminSetUserRole(c *gin.Context) {
	userID := c.Param("id")

	var req struct {
		IsAdmin *bool `json:"is_admin" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.repo.SetUserAdmin(c.Request.Context(), userID, *req.IsAdmin); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"is_admin": *req.IsAdmin,
	})
}

func (api *API) adminListGenerations(c *gin.Context) {
	limit, offset := pagination(c)

	generations, err := api.repo.ListGenerations(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generations": generations,
		"limit":       limit,
		"offset":      offset,
	})
}
