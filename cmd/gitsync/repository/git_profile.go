package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/appforge/gitsync/common/db"
	"github.com/appforge/gitsync/common/models"
)

// GitProfileRepository handles database operations for author profiles
type GitProfileRepository struct {
	db *db.DB
}

// NewGitProfileRepository creates a new git profile repository
func NewGitProfileRepository(db *db.DB) *GitProfileRepository {
	return &GitProfileRepository{db: db}
}

// Get retrieves a user's profile for a key ("default" or a lineage root id).
// Returns (nil, nil) when no profile is stored.
func (r *GitProfileRepository) Get(ctx context.Context, userID, profileKey string) (*models.GitProfile, error) {
	query := `
		SELECT author_name, author_email, use_global_profile
		FROM git_profile
		WHERE user_id = $1 AND profile_key = $2
	`

	profile := &models.GitProfile{}
	err := r.db.QueryRow(ctx, query, userID, profileKey).Scan(
		&profile.AuthorName,
		&profile.AuthorEmail,
		&profile.UseGlobalProfile,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get git profile: %w", err)
	}

	return profile, nil
}

// Upsert stores or replaces a user's profile for a key
func (r *GitProfileRepository) Upsert(ctx context.Context, userID, profileKey string, profile *models.GitProfile) error {
	query := `
		INSERT INTO git_profile (user_id, profile_key, author_name, author_email, use_global_profile, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, profile_key) DO UPDATE
		SET author_name = EXCLUDED.author_name,
		    author_email = EXCLUDED.author_email,
		    use_global_profile = EXCLUDED.use_global_profile,
		    updated_at = now()
	`

	_, err := r.db.Exec(ctx, query,
		userID,
		profileKey,
		profile.AuthorName,
		profile.AuthorEmail,
		profile.UseGlobalProfile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert git profile: %w", err)
	}

	return nil
}
