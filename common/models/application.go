package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is one member of a version-controlled lineage. The root record
// (its own id equals GitMetadata.DefaultApplicationID) owns the deploy key;
// every other record represents one branch's domain content.
type Application struct {
	ID                   uuid.UUID               `json:"id"`
	Name                 string                  `json:"name"`
	OrganizationID       string                  `json:"organization_id"`
	DefaultApplicationID *uuid.UUID              `json:"default_application_id,omitempty"`
	GitMetadata          *GitApplicationMetadata `json:"git_metadata,omitempty"`
	PageIDs              []string                `json:"page_ids"`
	ActionIDs            []string                `json:"action_ids"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// IsDefault reports whether this record is the lineage root
func (a *Application) IsDefault() bool {
	return a.GitMetadata != nil && a.GitMetadata.DefaultApplicationID == a.ID
}

// BranchName returns the record's branch name, or empty if unlinked
func (a *Application) BranchName() string {
	if a.GitMetadata == nil {
		return ""
	}
	return a.GitMetadata.BranchName
}
