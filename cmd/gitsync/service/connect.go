package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/keygen"
	"github.com/appforge/gitsync/common/models"
)

// ConnectRequest represents a request to connect a lineage to a remote
// repository.
type ConnectRequest struct {
	RemoteURL    string             `json:"remoteUrl"`
	GitProfile   *models.GitProfile `json:"gitProfile,omitempty"`
	OriginHeader string             `json:"-"`
}

// Connect links the lineage root to a remote repository: it clones the
// remote, verifies the clone is safe to reuse, writes version-control
// metadata onto the root record, materializes the current snapshot, seeds a
// README, and performs the initial commit and push.
func (s *GitSyncService) Connect(ctx context.Context, userID string, defaultApplicationID uuid.UUID, req *ConnectRequest) (*models.Application, error) {
	if req.RemoteURL == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "remote url")
	}
	if req.OriginHeader == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "origin")
	}

	defer s.components.Telemetry.RecordDuration("git.connect", time.Now())

	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}
	if root.GitMetadata == nil || !root.GitMetadata.GitAuth.IsPopulated() {
		return nil, apperrors.New(apperrors.InvalidGitSSHConfiguration,
			"deploy key pair is missing, generate a deploy key before connecting")
	}

	if req.GitProfile != nil {
		if err := s.profileSvc.StoreForApplication(ctx, userID, root.ID, req.GitProfile); err != nil {
			return nil, err
		}
	}

	browserURL := browserURLFromRemote(req.RemoteURL)

	// Quota is evaluated before any mutating git operation.
	isPrivate, err := s.probe.IsRepoPrivate(ctx, browserURL)
	if err != nil {
		s.components.Logger.Warn("remote visibility probe failed on connect", "error", err)
		isPrivate = false
	}
	if isPrivate {
		if err := s.checkPrivateRepoQuota(ctx, root.OrganizationID); err != nil {
			s.recordOperation("git.connect", false, nil)
			return nil, err
		}
	}

	repoName := repoNameFromRemote(req.RemoteURL)
	repoPath := s.repoPath(root.OrganizationID, root.ID, repoName)

	release := s.locks.Acquire(s.lockKey(root.OrganizationID, root.ID, repoName))
	defer release()

	auth := root.GitMetadata.GitAuth
	defaultBranch, err := s.git.Clone(ctx, repoPath, req.RemoteURL, auth.PrivateKey, auth.PublicKey)
	if err != nil {
		s.recordOperation("git.connect", false, nil)
		return nil, apperrors.Wrap(apperrors.TransportFailure, err, "failed to clone %s", req.RemoteURL)
	}

	// A freshly cloned directory with content means a pre-existing, unrelated
	// repository: unsafe to reuse.
	empty, err := s.files.IsEmpty(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect cloned repository: %w", err)
	}
	if !empty {
		if rmErr := s.files.RemoveRepo(ctx, repoPath); rmErr != nil {
			s.components.Logger.Warn("failed to clean rejected clone", "path", repoPath, "error", rmErr)
		}
		s.recordOperation("git.connect", false, nil)
		return nil, apperrors.New(apperrors.InvalidGitRepo, "the remote repository is not empty")
	}

	root.GitMetadata = &models.GitApplicationMetadata{
		RepoName:                  repoName,
		RemoteURL:                 req.RemoteURL,
		BrowserSupportedRemoteURL: browserURL,
		BranchName:                defaultBranch,
		DefaultBranchName:         defaultBranch,
		DefaultApplicationID:      root.ID,
		IsRepoPrivate:             isPrivate,
		GitAuth:                   auth,
	}
	if err := s.apps.Update(ctx, root); err != nil {
		return nil, err
	}

	op := &opContext{
		userID:    userID,
		root:      root,
		branchApp: root,
		metadata:  root.GitMetadata,
		auth:      auth,
		repoPath:  repoPath,
	}
	if err := s.resolveAuthor(ctx, op); err != nil {
		return nil, err
	}

	if _, err := s.files.SaveApplication(ctx, repoPath, root, defaultBranch); err != nil {
		return nil, fmt.Errorf("failed to materialize working tree: %w", err)
	}

	viewURL := fmt.Sprintf("%s/applications/%s/pages", req.OriginHeader, root.ID)
	editURL := fmt.Sprintf("%s/applications/%s/edit", req.OriginHeader, root.ID)
	if err := s.files.InitializeReadme(ctx, repoPath, viewURL, editURL); err != nil {
		return nil, fmt.Errorf("failed to seed README: %w", err)
	}

	if _, err := s.git.Commit(ctx, repoPath, defaultCommitMessage+reasonConnect, op.authorName, op.authorEmail, false); err != nil {
		if !isNothingToCommit(err) {
			s.recordOperation("git.connect", false, op)
			return nil, apperrors.ActionFailed("commit", err)
		}
	}

	if _, err := s.pushBranch(ctx, op); err != nil {
		// A rejected initial push means no write access: clean up the
		// partially connected state before surfacing the failure.
		s.detachWorktree(ctx, root, repoPath)
		s.recordOperation("git.connect", false, op)
		return nil, err
	}

	s.components.Logger.WithApplicationID(root.ID.String()).WithBranch(defaultBranch).
		Info("application connected to git", "repo", repoName)
	s.recordOperation("git.connect", true, op)

	return root, nil
}

// detachWorktree removes the working tree and clears the root's
// version-control metadata, keeping the deploy key so the user can retry.
func (s *GitSyncService) detachWorktree(ctx context.Context, root *models.Application, repoPath string) {
	if err := s.files.RemoveRepo(ctx, repoPath); err != nil {
		s.components.Logger.Warn("failed to remove working tree", "path", repoPath, "error", err)
	}

	auth := root.GitMetadata.GitAuth
	root.GitMetadata = &models.GitApplicationMetadata{
		DefaultApplicationID: root.ID,
		GitAuth:              auth,
	}
	if err := s.apps.Update(ctx, root); err != nil {
		s.components.Logger.Warn("failed to clear git metadata", "application_id", root.ID, "error", err)
	}
}

// Detach unlinks a lineage from version control: every non-current branch
// record is deleted with its domain content, the root's metadata is cleared,
// and the working tree is removed.
func (s *GitSyncService) Detach(ctx context.Context, defaultApplicationID uuid.UUID) (*models.Application, error) {
	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}
	if root.GitMetadata == nil || !root.GitMetadata.GitAuth.IsPopulated() {
		return nil, apperrors.New(apperrors.InvalidGitConfiguration, gitConfigErrorMessage)
	}

	md := root.GitMetadata
	repoPath := s.repoPath(root.OrganizationID, root.ID, md.RepoName)

	release := s.locks.Acquire(s.lockKey(root.OrganizationID, root.ID, md.RepoName))
	defer release()

	lineage, err := s.apps.ListByDefaultApp(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	for _, app := range lineage {
		if app.ID == root.ID {
			continue
		}
		if err := s.apps.Delete(ctx, app.ID); err != nil {
			return nil, fmt.Errorf("failed to delete branch record %s: %w", app.ID, err)
		}
		s.components.Logger.Info("deleted branch record on detach",
			"application_id", app.ID,
			"branch", app.BranchName())
	}

	root.GitMetadata = nil
	selfID := root.ID
	root.DefaultApplicationID = &selfID
	if err := s.apps.Update(ctx, root); err != nil {
		return nil, err
	}

	if err := s.files.RemoveRepo(ctx, repoPath); err != nil {
		s.components.Logger.Warn("failed to remove working tree on detach", "path", repoPath, "error", err)
	}

	s.components.Logger.Info("application detached from git", "application_id", root.ID)
	s.components.Telemetry.RecordGitOperation("git.detach", true, map[string]interface{}{
		"application_id": root.ID.String(),
	})

	return root, nil
}

// GenerateDeployKey creates a fresh deploy key pair for the lineage root,
// replacing any previous pair. The private half stays on the root record.
func (s *GitSyncService) GenerateDeployKey(ctx context.Context, defaultApplicationID uuid.UUID) (*models.GitAuth, error) {
	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}

	key, err := keygen.Generate("gitsync-deploy-key")
	if err != nil {
		return nil, fmt.Errorf("failed to generate deploy key: %w", err)
	}

	auth := &models.GitAuth{
		PublicKey:   key.PublicKey,
		PrivateKey:  key.PrivateKey,
		GeneratedAt: key.GeneratedAt,
	}

	if root.GitMetadata == nil {
		root.GitMetadata = &models.GitApplicationMetadata{
			DefaultApplicationID: root.ID,
		}
	}
	root.GitMetadata.GitAuth = auth

	if err := s.apps.Update(ctx, root); err != nil {
		return nil, err
	}

	return auth, nil
}

// GetGitMetadata returns the lineage root's metadata with the private key
// stripped.
func (s *GitSyncService) GetGitMetadata(ctx context.Context, defaultApplicationID uuid.UUID) (*models.GitApplicationMetadata, error) {
	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}
	if root.GitMetadata == nil {
		return nil, apperrors.New(apperrors.InvalidGitConfiguration, gitConfigErrorMessage)
	}

	md := *root.GitMetadata
	if md.GitAuth != nil {
		md.GitAuth = &models.GitAuth{
			PublicKey:   md.GitAuth.PublicKey,
			GeneratedAt: md.GitAuth.GeneratedAt,
		}
	}
	return &md, nil
}
