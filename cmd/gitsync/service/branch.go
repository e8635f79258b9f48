package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

// CreateBranch creates a new branch from an existing local branch: it
// verifies no remote branch carries the name, creates and checks out the git
// branch, clones the source's domain record into a new branch record, and
// immediately commits and pushes so the branch is never left uncommitted.
func (s *GitSyncService) CreateBranch(ctx context.Context, userID string, defaultApplicationID uuid.UUID, newBranchName, sourceBranchName string) (*models.Application, error) {
	if newBranchName == "" || sourceBranchName == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "branch name")
	}
	if isRemoteQualified(newBranchName) || isRemoteQualified(sourceBranchName) {
		return nil, apperrors.New(apperrors.UnsupportedRemoteBranch,
			"cannot create a branch from a remote-tracking name, check out the remote branch first")
	}

	op, err := s.resolveOp(ctx, userID, defaultApplicationID, sourceBranchName)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	if err := s.git.Checkout(ctx, op.repoPath, sourceBranchName); err != nil {
		return nil, apperrors.ActionFailed("checkout", fmt.Errorf("unable to find %s: %w", sourceBranchName, err))
	}

	auth := op.auth
	if _, err := s.git.Fetch(ctx, op.repoPath, auth.PublicKey, auth.PrivateKey, false); err != nil {
		return nil, apperrors.ActionFailed("fetch", err)
	}

	// Name collision is checked against the remote before anything mutates.
	remoteBranches, err := s.git.ListBranches(ctx, op.repoPath, op.metadata.RemoteURL, auth.PrivateKey, auth.PublicKey, true)
	if err != nil {
		return nil, apperrors.ActionFailed("branch list", err)
	}
	for _, b := range remoteBranches {
		if stripRemoteQualifier(b.BranchName) == newBranchName {
			s.recordOperation("git.create_branch", false, op)
			return nil, apperrors.New(apperrors.DuplicateBranchName,
				"branch %s already exists on the remote", newBranchName)
		}
	}

	if err := s.git.CreateAndCheckout(ctx, op.repoPath, newBranchName); err != nil {
		return nil, apperrors.ActionFailed("branch", err)
	}

	branchApp, err := s.cloneBranchRecord(ctx, op.branchApp, op.root, newBranchName)
	if err != nil {
		return nil, err
	}

	branchOp := &opContext{
		userID:    userID,
		root:      op.root,
		branchApp: branchApp,
		metadata:  branchApp.GitMetadata,
		auth:      auth,
		repoPath:  op.repoPath,
	}

	// New branches are committed right away so later operations never diff
	// against an empty branch.
	if _, err := s.commitAndPushWithDefaultMessage(ctx, branchOp, reasonBranchCreated+newBranchName); err != nil {
		s.recordOperation("git.create_branch", false, op)
		return nil, err
	}

	s.components.Logger.WithApplicationID(branchApp.ID.String()).WithBranch(newBranchName).
		Info("branch created", "source", sourceBranchName)
	s.recordOperation("git.create_branch", true, branchOp)

	return branchApp, nil
}

// cloneBranchRecord clones a domain record into a new branch record,
// stripping key material, clearing the privacy flag, and detaching the
// content collections so they are independently populated.
func (s *GitSyncService) cloneBranchRecord(ctx context.Context, source, root *models.Application, branchName string) (*models.Application, error) {
	branchApp := &models.Application{
		ID:             uuid.New(),
		Name:           source.Name,
		OrganizationID: source.OrganizationID,
		PageIDs:        append([]string(nil), source.PageIDs...),
		ActionIDs:      append([]string(nil), source.ActionIDs...),
	}
	rootID := root.ID
	branchApp.DefaultApplicationID = &rootID

	branchApp.GitMetadata = &models.GitApplicationMetadata{
		RepoName:                  root.GitMetadata.RepoName,
		RemoteURL:                 root.GitMetadata.RemoteURL,
		BrowserSupportedRemoteURL: root.GitMetadata.BrowserSupportedRemoteURL,
		BranchName:                branchName,
		DefaultBranchName:         root.GitMetadata.DefaultBranchName,
		DefaultApplicationID:      root.ID,
		// Branch records never persist key material or the privacy flag.
		IsRepoPrivate: false,
		GitAuth:       nil,
	}

	if err := s.apps.Create(ctx, branchApp); err != nil {
		return nil, fmt.Errorf("failed to create branch record: %w", err)
	}

	return branchApp, nil
}

// CheckoutBranch resolves a local branch record, or checks out a remote
// branch into a fresh branch record when the name is remote-qualified.
func (s *GitSyncService) CheckoutBranch(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (*models.Application, error) {
	if branchName == "" {
		return nil, apperrors.New(apperrors.InvalidParameter, "branch name")
	}

	if !isRemoteQualified(branchName) {
		// Read-only: resolving an already-materialized branch record has no
		// git side effects beyond metadata validation.
		op, err := s.resolveOp(ctx, userID, defaultApplicationID, branchName)
		if err != nil {
			return nil, err
		}
		return op.branchApp, nil
	}

	return s.checkoutRemoteBranch(ctx, userID, defaultApplicationID, branchName)
}

func (s *GitSyncService) checkoutRemoteBranch(ctx context.Context, userID string, defaultApplicationID uuid.UUID, remoteBranchName string) (*models.Application, error) {
	bareName := stripRemoteQualifier(remoteBranchName)

	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}
	if root.GitMetadata == nil || !root.GitMetadata.IsComplete() {
		return nil, apperrors.New(apperrors.InvalidGitConfiguration, gitConfigErrorMessage)
	}

	// A local record with the bare name means the checkout already happened;
	// silently resolving to the local copy would mask divergence.
	lineage, err := s.apps.ListByDefaultApp(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	for _, app := range lineage {
		if app.BranchName() == bareName {
			return nil, apperrors.New(apperrors.DuplicateBranchName,
				"%s already exists locally as %s", remoteBranchName, bareName)
		}
	}

	md := root.GitMetadata
	repoPath := s.repoPath(root.OrganizationID, root.ID, md.RepoName)

	release := s.locks.Acquire(s.lockKey(root.OrganizationID, root.ID, md.RepoName))
	defer release()

	auth := md.GitAuth
	if !auth.IsPopulated() {
		return nil, apperrors.New(apperrors.InvalidGitSSHConfiguration, "deploy key pair is missing for the lineage root")
	}
	if _, err := s.git.Fetch(ctx, repoPath, auth.PublicKey, auth.PrivateKey, false); err != nil {
		return nil, apperrors.ActionFailed("fetch", err)
	}
	if err := s.git.CheckoutRemote(ctx, repoPath, bareName); err != nil {
		return nil, apperrors.ActionFailed("checkout", err)
	}

	branchApp, err := s.cloneBranchRecord(ctx, root, root, bareName)
	if err != nil {
		return nil, err
	}

	// The snapshot comes from the freshly checked-out working tree, not from
	// the database.
	snapshot, err := s.files.LoadApplication(ctx, root.OrganizationID, root.ID.String(), md.RepoName, bareName)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", bareName, err)
	}
	applySnapshot(branchApp, snapshot)
	if err := s.apps.Update(ctx, branchApp); err != nil {
		return nil, err
	}

	s.components.Logger.Info("checked out remote branch",
		"application_id", branchApp.ID,
		"branch", bareName)
	s.components.Telemetry.RecordGitOperation("git.checkout_remote", true, map[string]interface{}{
		"application_id": root.ID.String(),
		"branch":         bareName,
	})

	return branchApp, nil
}

// ListBranches lists the lineage's branches. In prune mode it fetches the
// remote first and reconciles: local branches absent from the remote are
// deleted, excluding the current branch and the lineage's primary branch.
func (s *GitSyncService) ListBranches(ctx context.Context, userID string, defaultApplicationID uuid.UUID, prune bool, currentBranch string) ([]models.GitBranch, error) {
	op, err := s.resolveOp(ctx, userID, defaultApplicationID, "")
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(op.lockKey)
	defer release()

	auth := op.auth
	md := op.root.GitMetadata

	if prune {
		if _, err := s.git.Fetch(ctx, op.repoPath, auth.PublicKey, auth.PrivateKey, true); err != nil {
			return nil, apperrors.ActionFailed("fetch", err)
		}
	}

	branches, err := s.git.ListBranches(ctx, op.repoPath, md.RemoteURL, auth.PrivateKey, auth.PublicKey, prune)
	if err != nil {
		return nil, apperrors.ActionFailed("branch list", err)
	}

	if prune {
		if err := s.pruneLocalBranches(ctx, op, branches, currentBranch); err != nil {
			return nil, err
		}
	}

	// Mark the recorded default branch, and adopt the remote's default when
	// it moved.
	remoteDefault := ""
	for i := range branches {
		branches[i].BranchName = stripRemoteQualifier(branches[i].BranchName)
		if branches[i].IsDefault {
			remoteDefault = branches[i].BranchName
		}
	}
	if remoteDefault == "" {
		for i := range branches {
			if branches[i].BranchName == md.DefaultBranchName {
				branches[i].IsDefault = true
			}
		}
	} else if remoteDefault != md.DefaultBranchName {
		md.DefaultBranchName = remoteDefault
		if err := s.apps.Update(ctx, op.root); err != nil {
			return nil, err
		}
		s.components.Logger.Info("default branch updated from remote",
			"application_id", op.root.ID,
			"default_branch", remoteDefault)
	}

	return branches, nil
}

// pruneLocalBranches deletes branch records and local git branches that no
// longer exist on the remote. The current branch and the lineage primary are
// never pruned. Uncommitted local-only work on a pruned branch is discarded;
// each deletion is logged so the loss is at least visible.
func (s *GitSyncService) pruneLocalBranches(ctx context.Context, op *opContext, remoteBranches []models.GitBranch, currentBranch string) error {
	remoteNames := make(map[string]bool, len(remoteBranches))
	for _, b := range remoteBranches {
		remoteNames[stripRemoteQualifier(b.BranchName)] = true
	}

	lineage, err := s.apps.ListByDefaultApp(ctx, op.root.ID)
	if err != nil {
		return err
	}

	for _, app := range lineage {
		name := app.BranchName()
		if name == "" || name == currentBranch || name == op.root.GitMetadata.BranchName {
			continue
		}
		if remoteNames[name] {
			continue
		}

		s.components.Logger.Warn("pruning local branch absent from remote",
			"application_id", app.ID,
			"branch", name)

		if err := s.apps.Delete(ctx, app.ID); err != nil {
			return fmt.Errorf("failed to delete pruned branch record %s: %w", app.ID, err)
		}
		if err := s.git.DeleteBranch(ctx, op.repoPath, name); err != nil {
			s.components.Logger.Warn("failed to delete local git branch",
				"branch", name, "error", err)
		}
	}

	return nil
}
