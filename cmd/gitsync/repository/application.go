package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/db"
	"github.com/appforge/gitsync/common/models"
)

// ApplicationRepository handles database operations for application records
// and their version-control metadata.
type ApplicationRepository struct {
	db *db.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *db.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `
	id, name, organization_id, default_application_id,
	git_metadata, page_ids, action_ids, created_at, updated_at
`

func scanApplication(row pgx.Row) (*models.Application, error) {
	app := &models.Application{}
	err := row.Scan(
		&app.ID,
		&app.Name,
		&app.OrganizationID,
		&app.DefaultApplicationID,
		&app.GitMetadata,
		&app.PageIDs,
		&app.ActionIDs,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.RecordNotFound, "application not found")
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}
	return app, nil
}

// Create inserts a new application record
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO application (
			id, name, organization_id, default_application_id,
			git_metadata, page_ids, action_ids, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`

	_, err := r.db.Exec(ctx, query,
		app.ID,
		app.Name,
		app.OrganizationID,
		app.DefaultApplicationID,
		app.GitMetadata,
		app.PageIDs,
		app.ActionIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by its id
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM application WHERE id = $1`
	return scanApplication(r.db.QueryRow(ctx, query, id))
}

// GetByBranchAndDefaultApp resolves the branch record for a branch name
// within a lineage. Branch names are unique within a lineage.
func (r *ApplicationRepository) GetByBranchAndDefaultApp(ctx context.Context, branchName string, defaultApplicationID uuid.UUID) (*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM application
		WHERE git_metadata ->> 'branchName' = $1
		  AND default_application_id = $2
		LIMIT 1
	`
	return scanApplication(r.db.QueryRow(ctx, query, branchName, defaultApplicationID))
}

// ListByDefaultApp lists every record of a lineage, root included
func (r *ApplicationRepository) ListByDefaultApp(ctx context.Context, defaultApplicationID uuid.UUID) ([]*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM application
		WHERE default_application_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, defaultApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineage applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

// Update persists the mutable application fields
func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE application
		SET name = $2,
		    default_application_id = $3,
		    git_metadata = $4,
		    page_ids = $5,
		    action_ids = $6,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		app.ID,
		app.Name,
		app.DefaultApplicationID,
		app.GitMetadata,
		app.PageIDs,
		app.ActionIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.RecordNotFound, "application %s not found", app.ID)
	}

	return nil
}

// Delete removes an application record
func (r *ApplicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM application WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.RecordNotFound, "application %s not found", id)
	}
	return nil
}

// CountPrivateReposByOrg counts private-repo-connected lineage roots for an
// organization, for quota checks.
func (r *ApplicationRepository) CountPrivateReposByOrg(ctx context.Context, organizationID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM application
		WHERE organization_id = $1
		  AND id = default_application_id
		  AND (git_metadata ->> 'isRepoPrivate')::boolean = TRUE
	`

	var count int
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count private repos: %w", err)
	}
	return count, nil
}
