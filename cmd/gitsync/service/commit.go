package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

// CommitRequest represents a request to commit a branch's current snapshot
type CommitRequest struct {
	CommitMessage string `json:"commitMessage"`
	DoPush        bool   `json:"doPush"`
}

// Commit materializes the branch's current database snapshot into the
// working tree and commits it, optionally chaining a push. A clean working
// tree is reported as status text, not a failure.
func (s *GitSyncService) Commit(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string, req *CommitRequest) (string, error) {
	if branchName == "" {
		return "", apperrors.New(apperrors.InvalidParameter, "branch name")
	}

	message := req.CommitMessage
	if message == "" {
		message = defaultCommitMessage + reasonConnect
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		return "", err
	}

	if err := s.checkRepoPrivacyDrift(ctx, op.root); err != nil {
		s.recordOperation("git.commit", false, op)
		return "", err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	if err := s.git.Checkout(ctx, op.repoPath, branchName); err != nil {
		return "", apperrors.ActionFailed("checkout", err)
	}

	if _, err := s.files.SaveApplication(ctx, op.repoPath, op.branchApp, branchName); err != nil {
		return "", fmt.Errorf("failed to materialize working tree: %w", err)
	}

	if err := s.resolveAuthor(ctx, op); err != nil {
		return "", err
	}

	result, err := s.git.Commit(ctx, op.repoPath, message, op.authorName, op.authorEmail, false)
	if err != nil {
		if isNothingToCommit(err) {
			result = emptyCommitStatus
		} else {
			s.recordOperation("git.commit", false, op)
			return "", apperrors.ActionFailed("commit", err)
		}
	} else {
		result = "committed successfully! " + result
	}

	if req.DoPush {
		pushResult, err := s.pushBranch(ctx, op)
		if err != nil {
			s.recordOperation("git.commit", false, op)
			return "", err
		}
		result = result + " & " + pushResult
	}

	op.metadata.LastCommittedAt = nowUTC()
	if err := s.apps.Update(ctx, op.branchApp); err != nil {
		s.components.Logger.Warn("failed to record commit timestamp",
			"application_id", op.branchApp.ID, "error", err)
	}

	s.recordOperation("git.commit", true, op)
	return result, nil
}

// Push pushes the branch's committed state to the tracked remote
func (s *GitSyncService) Push(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (string, error) {
	if branchName == "" {
		return "", apperrors.New(apperrors.InvalidParameter, "branch name")
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		return "", err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	// Push only makes sense once a commit exists.
	history, err := s.git.CommitHistory(ctx, op.repoPath)
	if err != nil {
		return "", apperrors.ActionFailed("log", err)
	}
	if len(history) == 0 {
		return "", apperrors.New(apperrors.GitActionFailed,
			"push failed: branch %s has no commits yet, commit before pushing", branchName)
	}

	result, err := s.pushBranch(ctx, op)
	if err != nil {
		s.recordOperation("git.push", false, op)
		return "", err
	}

	s.recordOperation("git.push", true, op)
	return result, nil
}

// CommitHistory lists the branch's commit log
func (s *GitSyncService) CommitHistory(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) ([]models.GitCommitEntry, error) {
	if branchName == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "branch name")
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	if err := s.git.Checkout(ctx, op.repoPath, branchName); err != nil {
		return nil, apperrors.ActionFailed("checkout", err)
	}

	history, err := s.git.CommitHistory(ctx, op.repoPath)
	if err != nil {
		return nil, apperrors.ActionFailed("log", err)
	}

	return history, nil
}
