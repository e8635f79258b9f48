package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

// MergeRequest represents a request to merge one branch into another
type MergeRequest struct {
	SourceBranch      string `json:"sourceBranch"`
	DestinationBranch string `json:"destinationBranch"`
}

func validateMergeBranches(req *MergeRequest) error {
	if req.SourceBranch == "" || req.DestinationBranch == "" {
		return apperrors.New(apperrors.InvalidParameter, "branch name")
	}
	if isRemoteQualified(req.SourceBranch) || isRemoteQualified(req.DestinationBranch) {
		return apperrors.New(apperrors.UnsupportedRemoteBranch,
			"merging directly with a remote-tracking branch is not supported")
	}
	return nil
}

// checkMergeReadiness verifies a branch has no pending remote changes and no
// uncommitted local changes. Returned as a typed error naming the offending
// branch; the speculative probe converts it to a blocked result instead.
func (s *GitSyncService) checkMergeReadiness(ctx context.Context, op *opContext, branchName string) error {
	status, err := s.statusLocked(ctx, op, branchName)
	if err != nil {
		return err
	}
	if status.BehindCount > 0 {
		return apperrors.New(apperrors.MergeBlockedRemoteChanges,
			"branch %s is %d commits behind its remote, pull before merging", branchName, status.BehindCount)
	}
	if status.ModifiedCount() > 0 {
		return apperrors.New(apperrors.MergeBlockedLocalChanges,
			"branch %s has uncommitted local changes, commit before merging", branchName)
	}
	return nil
}

// Merge merges the source branch into the destination branch, rehydrates the
// destination's database snapshot from the merged tree, and auto-commits and
// pushes the result. A conflict is never auto-resolved; it surfaces as a
// domain error instructing manual resolution.
func (s *GitSyncService) Merge(ctx context.Context, userID string, defaultApplicationID uuid.UUID, req *MergeRequest) (*models.GitPullResult, error) {
	if err := validateMergeBranches(req); err != nil {
		return nil, err
	}
	defer s.components.Telemetry.RecordDuration("git.merge", time.Now())

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, req.DestinationBranch)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	for _, branch := range []string{req.SourceBranch, req.DestinationBranch} {
		if err := s.checkMergeReadiness(ctx, op, branch); err != nil {
			s.recordOperation("git.merge", false, op)
			return nil, err
		}
	}

	mergeResult, err := s.git.Merge(ctx, op.repoPath, req.SourceBranch, req.DestinationBranch)
	if err != nil {
		s.recordOperation("git.merge", false, op)
		if isMergeConflict(err) {
			return nil, apperrors.New(apperrors.MergeConflict,
				"merge of %s into %s hit conflicts, resolve them manually or create a conflicted branch",
				req.SourceBranch, req.DestinationBranch)
		}
		return nil, apperrors.ActionFailed("merge", err)
	}

	// Rehydrate the destination from the merged working tree.
	snapshot, err := s.files.LoadApplication(ctx, op.root.OrganizationID, op.root.ID.String(), op.metadata.RepoName, req.DestinationBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate snapshot after merge: %w", err)
	}
	applySnapshot(op.branchApp, snapshot)
	if err := s.apps.Update(ctx, op.branchApp); err != nil {
		return nil, err
	}

	if _, err := s.commitAndPushWithDefaultMessage(ctx, op, reasonSyncAfterMerge+req.SourceBranch); err != nil {
		s.recordOperation("git.merge", false, op)
		return nil, err
	}

	s.recordOperation("git.merge", true, op)
	return &models.GitPullResult{
		MergeStatus: &models.MergeStatus{
			Status:    mergeResult,
			MergeAble: true,
		},
		Application: op.branchApp,
	}, nil
}

// IsBranchMergeable runs a speculative merge to assess mergeability. It never
// fails for merge-level reasons: blocked preconditions and conflicts come
// back as a non-mergeable result, and the destination tree is hard-reset so
// no conflict markers are left behind.
func (s *GitSyncService) IsBranchMergeable(ctx context.Context, userID string, defaultApplicationID uuid.UUID, req *MergeRequest) (*models.MergeStatus, error) {
	if err := validateMergeBranches(req); err != nil {
		return nil, err
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, req.DestinationBranch)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	for _, branch := range []string{req.SourceBranch, req.DestinationBranch} {
		if err := s.checkMergeReadiness(ctx, op, branch); err != nil {
			if code := apperrors.CodeOf(err); code == apperrors.MergeBlockedRemoteChanges || code == apperrors.MergeBlockedLocalChanges {
				return &models.MergeStatus{
					Status:    err.Error(),
					MergeAble: false,
				}, nil
			}
			return nil, err
		}
	}

	result, err := s.git.IsMergeable(ctx, op.repoPath, req.SourceBranch, req.DestinationBranch)
	if err != nil || !resultMergeable(result) {
		// Always leave the destination at its last commit, whatever the probe
		// did to the tree.
		if resetErr := s.git.ResetHard(ctx, op.repoPath, req.DestinationBranch); resetErr != nil {
			s.components.Logger.Warn("failed to reset destination after merge probe",
				"branch", req.DestinationBranch, "error", resetErr)
		}
	}
	if err != nil {
		return &models.MergeStatus{
			Status:    fmt.Sprintf("merge check failed: %v", err),
			MergeAble: false,
		}, nil
	}

	return result, nil
}

func resultMergeable(result *models.MergeStatus) bool {
	return result != nil && result.MergeAble
}

// CreateConflictedBranch escapes a conflicted state to the remote for manual
// resolution: the conflicted tree is committed and pushed under
// <branch>_mergeConflict with the platform bot identity, then the local
// conflict branch is removed while its remote copy is retained.
func (s *GitSyncService) CreateConflictedBranch(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (string, error) {
	if branchName == "" {
		return "", apperrors.New(apperrors.InvalidParameter, "branch name")
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		return "", err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	conflictedBranch := branchName + mergeConflictSuffix
	auth := op.auth

	if err := s.git.CreateAndCheckout(ctx, op.repoPath, conflictedBranch); err != nil {
		return "", apperrors.ActionFailed("branch", err)
	}

	cfg := s.components.Config.Git
	if _, err := s.git.Commit(ctx, op.repoPath, defaultCommitMessage+reasonConflictState, cfg.BotAuthorName, cfg.BotAuthorEmail, true); err != nil {
		if !isNothingToCommit(err) {
			return "", apperrors.ActionFailed("commit", err)
		}
	}

	result, err := s.git.Push(ctx, op.repoPath, op.metadata.RemoteURL, auth.PublicKey, auth.PrivateKey, conflictedBranch)
	if err != nil {
		return "", apperrors.ActionFailed("push", err)
	}
	if strings.Contains(result, PushRejectedMarker) {
		return "", apperrors.New(apperrors.GitActionFailed,
			"push failed: remote rejected the conflicted branch %s", conflictedBranch)
	}

	if err := s.git.Checkout(ctx, op.repoPath, branchName); err != nil {
		return "", apperrors.ActionFailed("checkout", err)
	}
	if err := s.git.DeleteBranch(ctx, op.repoPath, conflictedBranch); err != nil {
		s.components.Logger.Warn("failed to delete local conflict branch",
			"branch", conflictedBranch, "error", err)
	}

	s.recordOperation("git.create_conflicted_branch", true, op)
	return conflictedStateMessage, nil
}

func isMergeConflict(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "conflict")
}
