package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

// Pull fetches and merges the tracked remote branch into the working tree,
// rehydrates the database snapshot from the merged tree, and auto-commits
// and pushes so database and repository immediately re-converge.
func (s *GitSyncService) Pull(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (*models.GitPullResult, error) {
	if branchName == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "branch name")
	}
	defer s.components.Telemetry.RecordDuration("git.pull", time.Now())

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	if err := s.git.Checkout(ctx, op.repoPath, branchName); err != nil {
		return nil, apperrors.ActionFailed("checkout", err)
	}

	// Pulling over dirty state is never attempted: status must reflect the
	// latest database state, so materialize before inspecting.
	if _, err := s.files.SaveApplication(ctx, op.repoPath, op.branchApp, branchName); err != nil {
		return nil, fmt.Errorf("failed to materialize working tree: %w", err)
	}

	status, err := s.git.Status(ctx, op.repoPath, branchName)
	if err != nil {
		return nil, apperrors.ActionFailed("status", err)
	}
	if status.ModifiedCount() > 0 {
		s.recordOperation("git.pull", false, op)
		return nil, apperrors.New(apperrors.GitActionFailed,
			"pull failed: there are uncommitted changes on %s, commit them before pulling", branchName)
	}

	auth := op.auth
	mergeStatus, err := s.git.Pull(ctx, op.repoPath, op.metadata.RemoteURL, branchName, auth.PrivateKey, auth.PublicKey)
	if err != nil {
		if isNothingToFetch(err) {
			return &models.GitPullResult{
				MergeStatus: &models.MergeStatus{
					Status:    "nothing to fetch from remote, the branch is up to date",
					MergeAble: true,
				},
				Application: op.branchApp,
			}, nil
		}
		s.recordOperation("git.pull", false, op)
		return nil, apperrors.ActionFailed("pull", err)
	}

	// Rehydrate the database snapshot from the merged working tree.
	snapshot, err := s.files.LoadApplication(ctx, op.root.OrganizationID, op.root.ID.String(), op.metadata.RepoName, branchName)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate snapshot after pull: %w", err)
	}
	applySnapshot(op.branchApp, snapshot)
	if err := s.apps.Update(ctx, op.branchApp); err != nil {
		return nil, err
	}

	// Re-converge database and remote right away.
	if _, err := s.commitAndPushWithDefaultMessage(ctx, op, reasonSyncAfterPull); err != nil {
		s.recordOperation("git.pull", false, op)
		return nil, err
	}

	s.recordOperation("git.pull", true, op)
	return &models.GitPullResult{
		MergeStatus: mergeStatus,
		Application: op.branchApp,
	}, nil
}

// applySnapshot copies the domain content of a deserialized snapshot onto an
// existing branch record without touching its identity or metadata.
func applySnapshot(target, snapshot *models.Application) {
	if snapshot == nil {
		return
	}
	if snapshot.Name != "" {
		target.Name = snapshot.Name
	}
	target.PageIDs = append([]string(nil), snapshot.PageIDs...)
	target.ActionIDs = append([]string(nil), snapshot.ActionIDs...)
}
