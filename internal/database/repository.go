package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/buntercodes/vid-gen/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Users

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User, password string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Generate API key
	apiKey, err := generateAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, api_key, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.DisplayName, string(hashedPassword), apiKey,
		user.IsAdmin, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.APIKey = apiKey
	return nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = $1", email)
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, "id = $1", userID)
}

// ValidateAPIKey validates an API key and returns the user
func (r *Repository) ValidateAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	user, err := r.getUser(ctx, "api_key = $1", apiKey)
	if err != nil {
		return nil, fmt.Errorf("invalid API key")
	}
	return user, nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, display_name, password_hash, api_key, is_admin, is_active, created_at, updated_at
		FROM users
		WHERE %s
	`, where)

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.APIKey,
		&user.IsAdmin, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers retrieves all users with pagination
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, api_key, is_admin, is_active, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.APIKey,
			&user.IsAdmin, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, nil
}

// SetUserAdmin toggles the admin flag for a user
func (r *Repository) SetUserAdmin(ctx context.Context, userID string, isAdmin bool) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, userID, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// Generations

// CreateGeneration creates a new generation ledger record
func (r *Repository) CreateGeneration(ctx context.Context, gen *models.Generation) error {
	if gen.ID == "" {
		gen.ID = uuid.New().String()
	}

	query := `
		INSERT INTO generations (id, user_id, model, prompt, aspect_ratio, duration, size, status, error_msg, output_key, output_url, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		gen.ID, gen.UserID, gen.Model, gen.Prompt, gen.AspectRatio, gen.Duration,
		gen.Size, gen.Status, gen.ErrorMsg, gen.OutputKey, gen.OutputURL, gen.CompletedAt,
	).Scan(&gen.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}

	return nil
}

// UpdateGeneration updates a generation ledger record
func (r *Repository) UpdateGeneration(ctx context.Context, gen *models.Generation) error {
	query := `
		UPDATE generations
		SET status = $2, error_msg = $3, output_key = $4, output_url = $5, completed_at = $6
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		gen.ID, gen.Status, gen.ErrorMsg, gen.OutputKey, gen.OutputURL, gen.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}

	return nil
}

// GetGeneration retrieves a generation by ID
func (r *Repository) GetGeneration(ctx context.Context, id string) (*models.Generation, error) {
	var gen models.Generation

	query := `
		SELECT id, user_id, model, prompt, aspect_ratio, duration, size, status,
		       error_msg, output_key, output_url, created_at, completed_at
		FROM generations
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&gen.ID, &gen.UserID, &gen.Model, &gen.Prompt, &gen.AspectRatio, &gen.Duration,
		&gen.Size, &gen.Status, &gen.ErrorMsg, &gen.OutputKey, &gen.OutputURL,
		&gen.CreatedAt, &gen.CompletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("generation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return &gen, nil
}

// ListGenerations retrieves the most recent generations across all users
func (r *Repository) ListGenerations(ctx context.Context, limit, offset int) ([]*models.Generation, error) {
	query := `
		SELECT id, user_id, model, prompt, aspect_ratio, duration, size, status,
		       error_msg, output_key, output_url, created_at, completed_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	return r.queryGenerations(ctx, query, limit, offset)
}

// ListUserGenerations retrieves the most recent generations for one user
func (r *Repository) ListUserGenerations(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error) {
	query := `
		SELECT id, user_id, model, prompt, aspect_ratio, duration, size, status,
		       error_msg, output_key, output_url, created_at, completed_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryGenerations(ctx, query, userID, limit, offset)
}

func (r *Repository) queryGenerations(ctx context.Context, query string, args ...interface{}) ([]*models.Generation, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var gens []*models.Generation
	for rows.Next() {
		var gen models.Generation
		err := rows.Scan(
			&gen.ID, &gen.UserID, &gen.Model, &gen.Prompt, &gen.AspectRatio, &gen.Duration,
			&gen.Size, &gen.Status, &gen.ErrorMsg, &gen.OutputKey, &gen.OutputURL,
			&gen.CreatedAt, &gen.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, &gen)
	}

	return gens, nil
}

// Helper functions

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
