package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

// GetStatus computes the branch's status against its tracked remote. The
// current database snapshot is re-materialized into the working tree first so
// status reflects the latest database state, never a stale tree.
func (s *GitSyncService) GetStatus(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (*models.GitStatus, error) {
	if branchName == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "branch name")
	}
	branchName = stripRemoteQualifier(branchName)

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		// Lazily materialize a branch that exists on the remote but has no
		// local record yet.
		if apperrors.Is(err, apperrors.RecordNotFound) {
			if _, coErr := s.checkoutRemoteBranch(ctx, userID, defaultApplicationID, remoteBranchQualifier+branchName); coErr != nil {
				return nil, coErr
			}
			op, err = s.resolveOp(ctx, userID, defaultApplicationID, branchName)
		}
		if err != nil {
			return nil, err
		}
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	status, err := s.statusLocked(ctx, op, branchName)
	if err != nil {
		return nil, err
	}

	return status, nil
}

// statusLocked computes a branch status while the worktree lock is already
// held. Merge flows use it to inspect both sides under one lock.
func (s *GitSyncService) statusLocked(ctx context.Context, op *opContext, branchName string) (*models.GitStatus, error) {
	if err := s.git.Checkout(ctx, op.repoPath, branchName); err != nil {
		return nil, apperrors.ActionFailed("checkout", err)
	}

	branchApp := op.branchApp
	if branchApp.BranchName() != branchName {
		resolved, err := s.apps.GetByBranchAndDefaultApp(ctx, branchName, op.root.ID)
		if err != nil {
			return nil, err
		}
		branchApp = resolved
	}

	if _, err := s.files.SaveApplication(ctx, op.repoPath, branchApp, branchName); err != nil {
		return nil, fmt.Errorf("failed to materialize working tree: %w", err)
	}

	auth := op.auth
	if _, err := s.git.Fetch(ctx, op.repoPath, auth.PublicKey, auth.PrivateKey, false); err != nil {
		return nil, apperrors.ActionFailed("fetch", err)
	}

	status, err := s.git.Status(ctx, op.repoPath, branchName)
	if err != nil {
		return nil, apperrors.ActionFailed("status", err)
	}

	return status, nil
}
