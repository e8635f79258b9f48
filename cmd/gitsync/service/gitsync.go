package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/bootstrap"
	"github.com/appforge/gitsync/common/locker"
	"github.com/appforge/gitsync/common/models"
)

const (
	defaultCommitMessage   = "System generated commit, "
	emptyCommitStatus      = "On current branch nothing to commit, working tree clean"
	mergeConflictSuffix    = "_mergeConflict"
	remoteBranchQualifier  = "origin/"
	gitConfigErrorMessage  = "unable to find the git configuration, please reconfigure the application to connect to a git repository"
	conflictedStateMessage = "branch has been created from conflicted state. Please resolve merge conflicts in remote and pull again"
)

// Reasons appended to the system-generated commit message prefix
const (
	reasonConnect        = "initial commit"
	reasonBranchCreated  = "after creating a new branch: "
	reasonSyncAfterPull  = "for syncing changes with remote after git pull"
	reasonSyncAfterMerge = "for syncing changes with local branch after git merge, branch: "
	reasonConflictState  = "for conflicted state"
)

// GitSyncService is the branch sync orchestrator. It sequences the metadata
// store, the working-tree materializer, and the VCS executor so the three
// stores stay consistent across connect/commit/push/pull/branch/merge.
type GitSyncService struct {
	apps       ApplicationStore
	profileSvc *ProfileService
	git        GitExecutor
	files      FileStore
	probe      RemoteProbe
	locks      *locker.Keyed
	components *bootstrap.Components
}

// GitSyncServiceOpts contains options for creating a GitSyncService
type GitSyncServiceOpts struct {
	Apps       ApplicationStore
	ProfileSvc *ProfileService
	Git        GitExecutor
	Files      FileStore
	Probe      RemoteProbe
	Locks      *locker.Keyed
	Components *bootstrap.Components
}

// NewGitSyncService creates a new git sync service with options pattern
func NewGitSyncService(opts *GitSyncServiceOpts) *GitSyncService {
	return &GitSyncService{
		apps:       opts.Apps,
		profileSvc: opts.ProfileSvc,
		git:        opts.Git,
		files:      opts.Files,
		probe:      opts.Probe,
		locks:      opts.Locks,
		components: opts.Components,
	}
}

// opContext carries all intermediate state of one orchestrator operation so
// each step's contract is explicit instead of positional.
type opContext struct {
	userID    string
	root      *models.Application
	branchApp *models.Application
	metadata  *models.GitApplicationMetadata
	// auth is borrowed from the lineage root for the duration of the
	// operation. It is never written onto branch records: only the root
	// durably holds the key pair.
	auth        *models.GitAuth
	repoPath    string
	lockKey     string
	authorName  string
	authorEmail string
}

// repoPath builds the working-tree path for a lineage:
// {repoRoot}/{organization}/{defaultApplicationID}/{repoName}
func (s *GitSyncService) repoPath(organizationID string, defaultApplicationID uuid.UUID, repoName string) string {
	return filepath.Join(s.components.Config.Git.RepoRoot, organizationID, defaultApplicationID.String(), repoName)
}

func (s *GitSyncService) lockKey(organizationID string, defaultApplicationID uuid.UUID, repoName string) string {
	return organizationID + "/" + defaultApplicationID.String() + "/" + repoName
}

// resolveOp loads the lineage root and the branch record for branchName,
// verifies the metadata is complete, and builds the shared operation
// context carrying the root's borrowed key pair.
func (s *GitSyncService) resolveOp(ctx context.Context, userID string, defaultApplicationID uuid.UUID, branchName string) (*opContext, error) {
	root, err := s.apps.GetByID(ctx, defaultApplicationID)
	if err != nil {
		return nil, err
	}

	if root.GitMetadata == nil || !root.GitMetadata.IsComplete() {
		return nil, apperrors.New(apperrors.InvalidGitConfiguration, gitConfigErrorMessage)
	}
	if !root.GitMetadata.GitAuth.IsPopulated() {
		return nil, apperrors.New(apperrors.InvalidGitSSHConfiguration, "deploy key pair is missing for the lineage root")
	}

	branchApp := root
	if branchName != "" && branchName != root.GitMetadata.BranchName {
		branchApp, err = s.apps.GetByBranchAndDefaultApp(ctx, branchName, defaultApplicationID)
		if err != nil {
			return nil, err
		}
		if branchApp.GitMetadata == nil || !branchApp.GitMetadata.IsComplete() {
			return nil, apperrors.New(apperrors.InvalidGitConfiguration, gitConfigErrorMessage)
		}
	}

	md := root.GitMetadata
	return &opContext{
		userID:    userID,
		root:      root,
		branchApp: branchApp,
		metadata:  branchApp.GitMetadata,
		auth:      root.GitMetadata.GitAuth,
		repoPath:  s.repoPath(root.OrganizationID, defaultApplicationID, md.RepoName),
		lockKey:   s.lockKey(root.OrganizationID, defaultApplicationID, md.RepoName),
	}, nil
}

// resolveAuthor resolves the commit author through the lineage profile, the
// global profile, and the platform fallback, failing when no author name can
// be determined.
func (s *GitSyncService) resolveAuthor(ctx context.Context, op *opContext) error {
	profile, err := s.profileSvc.ResolveForApplication(ctx, op.userID, op.root.ID)
	if err != nil {
		return err
	}
	if profile.AuthorName == "" {
		return apperrors.New(apperrors.InvalidParameter, "author name")
	}
	op.authorName = profile.AuthorName
	op.authorEmail = profile.AuthorEmail
	return nil
}

// checkRepoPrivacyDrift re-probes the remote's visibility and, when it
// changed to private, re-validates the organization's private-repo quota
// before recording the new state. Runs before any mutating git call so a
// doomed request creates no partial state.
func (s *GitSyncService) checkRepoPrivacyDrift(ctx context.Context, root *models.Application) error {
	md := root.GitMetadata
	if md == nil || md.BrowserSupportedRemoteURL == "" {
		return nil
	}

	isPrivate, err := s.probe.IsRepoPrivate(ctx, md.BrowserSupportedRemoteURL)
	if err != nil {
		// Probe failures must not block the operation; keep the recorded state.
		s.components.Logger.Warn("remote visibility probe failed",
			"application_id", root.ID,
			"error", err)
		return nil
	}

	if isPrivate == md.IsRepoPrivate {
		return nil
	}

	if isPrivate {
		if err := s.checkPrivateRepoQuota(ctx, root.OrganizationID); err != nil {
			return err
		}
	}

	md.IsRepoPrivate = isPrivate
	if err := s.apps.Update(ctx, root); err != nil {
		return fmt.Errorf("failed to record repository visibility: %w", err)
	}

	s.components.Logger.Info("repository visibility changed",
		"application_id", root.ID,
		"is_private", isPrivate)
	return nil
}

func (s *GitSyncService) checkPrivateRepoQuota(ctx context.Context, organizationID string) error {
	limit := s.components.Config.Git.PrivateRepoLimit
	if limit <= 0 {
		return nil
	}

	count, err := s.apps.CountPrivateReposByOrg(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to count private repositories: %w", err)
	}
	if count >= limit {
		return apperrors.New(apperrors.GitApplicationLimit,
			"organization %s has reached its private repository limit of %d", organizationID, limit)
	}
	return nil
}

// commitAndPushWithDefaultMessage materializes the record's snapshot, commits
// with a system-generated message, and pushes. Used by the flows that must
// immediately re-converge database and remote (connect, branch create,
// post-pull and post-merge syncs).
func (s *GitSyncService) commitAndPushWithDefaultMessage(ctx context.Context, op *opContext, reason string) (string, error) {
	if _, err := s.files.SaveApplication(ctx, op.repoPath, op.branchApp, op.metadata.BranchName); err != nil {
		return "", fmt.Errorf("failed to materialize working tree: %w", err)
	}

	if op.authorName == "" {
		if err := s.resolveAuthor(ctx, op); err != nil {
			s.components.Logger.Warn("could not resolve commit author, attributing to bot",
				"application_id", op.root.ID, "error", err)
		}
	}
	authorName := op.authorName
	authorEmail := op.authorEmail
	if authorName == "" {
		authorName = s.components.Config.Git.BotAuthorName
		authorEmail = s.components.Config.Git.BotAuthorEmail
	}

	result, err := s.git.Commit(ctx, op.repoPath, defaultCommitMessage+reason, authorName, authorEmail, false)
	if err != nil {
		if isNothingToCommit(err) {
			return emptyCommitStatus, nil
		}
		return "", apperrors.ActionFailed("commit", err)
	}

	pushResult, err := s.pushBranch(ctx, op)
	if err != nil {
		return "", err
	}

	return result + " " + pushResult, nil
}

// pushBranch checks out the operation's branch and pushes it, classifying a
// non-fast-forward rejection as a domain error instructing the caller to
// pull first.
func (s *GitSyncService) pushBranch(ctx context.Context, op *opContext) (string, error) {
	md := op.metadata
	auth := op.auth

	if err := s.git.Checkout(ctx, op.repoPath, md.BranchName); err != nil {
		return "", apperrors.ActionFailed("checkout", err)
	}

	result, err := s.git.Push(ctx, op.repoPath, md.RemoteURL, auth.PublicKey, auth.PrivateKey, md.BranchName)
	if err != nil {
		return "", apperrors.ActionFailed("push", err)
	}

	if strings.Contains(result, PushRejectedMarker) {
		return "", apperrors.New(apperrors.GitActionFailed,
			"push failed: remote rejected a non-fast-forward update on %s, pull the remote changes first", md.BranchName)
	}

	return result, nil
}

func isNothingToCommit(err error) bool {
	return err != nil && (errors.Is(err, ErrNothingToCommit) || strings.Contains(err.Error(), "nothing to commit"))
}

func isNothingToFetch(err error) bool {
	return err != nil && (errors.Is(err, ErrNothingToFetch) || strings.Contains(err.Error(), "nothing to fetch"))
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// stripRemoteQualifier removes an "origin/" prefix from a branch name
func stripRemoteQualifier(branch string) string {
	return strings.TrimPrefix(branch, remoteBranchQualifier)
}

// isRemoteQualified reports whether a branch name references a
// remote-tracking ref
func isRemoteQualified(branch string) bool {
	return strings.HasPrefix(branch, remoteBranchQualifier)
}

func (s *GitSyncService) recordOperation(event string, success bool, op *opContext) {
	attrs := map[string]interface{}{}
	if op != nil && op.root != nil {
		attrs["application_id"] = op.root.ID.String()
		attrs["organization_id"] = op.root.OrganizationID
	}
	if op != nil && op.metadata != nil {
		attrs["branch"] = op.metadata.BranchName
	}
	s.components.Telemetry.RecordGitOperation(event, success, attrs)
}
