package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/buntercodes/vid-gen/internal/generation"
	"github.com/buntercodes/vid-gen/internal/middleware"
	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// Auth handlers

func (api *API) register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,min=8"`
		DisplayName string `json:"display_name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		ID:          uuid.New().String(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsActive:    true,
	}

	if err := api.repo.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"api_key": user.APIKey,
	})
}

func (api *API) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.repo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is inactive"})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email, api.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": user.ID,
		"email":   user.Email,
		"api_key": user.APIKey,
	})
}

// Model catalog

func (api *API) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": models.Models})
}

// Quota handlers

func (api *API) getQuota(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
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
		"videos_used":  snapshot.VideosUsed,
		"videos_total": snapshot.VideosTotal,
		"remaining":    snapshot.Remaining(),
		"week_start":   snapshot.WeekStart,
	})
}

// Generation handlers

func (api *API) submitGeneration(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gen, err := api.generations.Submit(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Weekly generation limit reached"})
		case errors.Is(err, quota.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Quota service temporarily unavailable"})
		case errors.Is(err, generation.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit generation"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gen)
}

func (api *API) getGeneration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	genID := c.Param("id")

	gen, err := api.repo.GetGeneration(c.Request.Context(), genID)
	if err != nil || gen.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}

	c.JSON(http.StatusOK, gen)
}

func (api *API) listGenerations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	limit, offset := pagination(c)

	generations, err := api.repo.ListUserGenerations(c.Request.Context(), userID, limit, offset)
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

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}

	return limit, offset
}
