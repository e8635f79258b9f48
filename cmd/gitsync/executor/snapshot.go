package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/appforge/gitsync/common/logger"
	"github.com/appforge/gitsync/common/models"
)

const (
	snapshotFileName = "application.json"
	readmeFileName   = "README.md"
)

// SnapshotStore materializes application snapshots into git working trees
// and reconstructs them back. All snapshots live under a single repo root:
// {root}/{organization}/{defaultApplicationID}/{repoName}.
type SnapshotStore struct {
	root   string
	logger *logger.Logger
}

// NewSnapshotStore creates a new snapshot store rooted at root
func NewSnapshotStore(root string, log *logger.Logger) *SnapshotStore {
	return &SnapshotStore{root: root, logger: log}
}

// applicationSnapshot is the serialized form of a branch's domain content.
// Identity and version-control metadata deliberately stay out of the tree;
// they belong to the database record, not the repository.
type applicationSnapshot struct {
	Name      string   `json:"name"`
	PageIDs   []string `json:"pageIds"`
	ActionIDs []string `json:"actionIds"`
}

// SaveApplication writes the snapshot into the working tree and returns the
// written path
func (s *SnapshotStore) SaveApplication(ctx context.Context, repoPath string, app *models.Application, branch string) (string, error) {
	snapshot := applicationSnapshot{
		Name:      app.Name,
		PageIDs:   app.PageIDs,
		ActionIDs: app.ActionIDs,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	target := filepath.Join(repoPath, snapshotFileName)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to materialize snapshot for branch %s: %w", branch, err)
	}

	s.logger.Debug("materialized snapshot", "path", target, "branch", branch)
	return target, nil
}

// LoadApplication reconstructs a snapshot from the working tree. The caller
// is responsible for having the right branch checked out first.
func (s *SnapshotStore) LoadApplication(ctx context.Context, organizationID, defaultApplicationID, repoName, branch string) (*models.Application, error) {
	path := filepath.Join(s.root, organizationID, defaultApplicationID, repoName, snapshotFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for branch %s: %w", branch, err)
	}

	var snapshot applicationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot for branch %s: %w", branch, err)
	}

	return &models.Application{
		Name:      snapshot.Name,
		PageIDs:   snapshot.PageIDs,
		ActionIDs: snapshot.ActionIDs,
	}, nil
}

// IsEmpty reports whether the cloned tree holds nothing but git internals
// and a readme. A tree with real content must never be silently overwritten
// by a connect.
func (s *SnapshotStore) IsEmpty(ctx context.Context, repoPath string) (bool, error) {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return false, fmt.Errorf("failed to inspect clone: %w", err)
	}
	for _, entry := range entries {
		switch entry.Name() {
		case ".git", readmeFileName:
			continue
		default:
			return false, nil
		}
	}
	return true, nil
}

// InitializeReadme seeds the repository readme with application links
func (s *SnapshotStore) InitializeReadme(ctx context.Context, repoPath, viewURL, editURL string) error {
	content := fmt.Sprintf(
		"# Version-controlled application\n\nThis repository is managed automatically.\n\n- View the application: %s\n- Edit the application: %s\n",
		viewURL, editURL)

	target := filepath.Join(repoPath, readmeFileName)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to seed readme: %w", err)
	}
	return nil
}

// RemoveRepo deletes the whole working tree
func (s *SnapshotStore) RemoveRepo(ctx context.Context, repoPath string) error {
	if repoPath == "" || repoPath == s.root {
		return fmt.Errorf("refusing to remove %q", repoPath)
	}
	if err := os.RemoveAll(repoPath); err != nil {
		return fmt.Errorf("failed to remove working tree: %w", err)
	}
	return nil
}
