package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/buntercodes/vid-gen/pkg/models"
)

func TestGenerateToken(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateToken("test-user-id", "test@example.com", 1*time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("test-secret")

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "Missing authorization header",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid token format",
			token:          "InvalidToken",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Garbage bearer token",
			token:          "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			c.Request = req

			JWTAuth()(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestJWTAuthWithValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("test-secret")

	userID := "test-user-id"
	token, err := GenerateToken(userID, "test@example.com", 1*time.Hour)
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c.Request = req

	handler := func(c *gin.Context) {
		extractedUserID, exists := GetUserID(c)
		assert.True(t, exists)
		assert.Equal(t, userID, extractedUserID)
		c.Status(http.StatusOK)
	}

	JWTAuth()(c)
	if !c.IsAborted() {
		handler(c)
	}

	assert.Equal(t, http.StatusOK, w.Code)
}

type fakeUserLookup struct {
	byKey map[string]*models.User
	byID  map[string]*models.User
}

func (f *fakeUserLookup) ValidateAPIKey(_ context.Context, apiKey string) (*models.User, error) {
	user, ok := f.byKey[apiKey]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeUserLookup) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lookup := &fakeUserLookup{
		byKey: map[string]*models.User{
			"valid-key":    {ID: "user-1", IsActive: true},
			"inactive-key": {ID: "user-2", IsActive: false},
		},
	}

	router := gin.New()
	router.Use(APIKeyAuth(lookup))
	router.GET("/test", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{"Valid key", "valid-key", http.StatusOK},
		{"Missing key", "", http.StatusUnauthorized},
		{"Unknown key", "wrong-key", http.StatusUnauthorized},
		{"Inactive user", "inactive-key", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("test-secret")

	lookup := &fakeUserLookup{
		byID: map[string]*models.User{
			"admin-user":   {ID: "admin-user", IsAdmin: true, IsActive: true},
			"regular-user": {ID: "regular-user", IsAdmin: false, IsActive: true},
		},
	}

	router := gin.New()
	router.Use(JWTAuth(), AdminOnly(lookup))
	router.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name           string
		userID         string
		expectedStatus int
	}{
		{"Admin allowed", "admin-user", http.StatusOK},
		{"Regular user forbidden", "regular-user", http.StatusForbidden},
		{"Unknown user forbidden", "ghost-user", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.userID, "user@example.com", 1*time.Hour)
			assert.NoError(t, err)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
