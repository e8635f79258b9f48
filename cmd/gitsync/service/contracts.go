package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/models"
)

// Soft conditions surfaced by GitExecutor implementations. These are reported
// to callers as descriptive status text, never as failures.
var (
	// ErrNothingToCommit means the working tree was clean when a commit was
	// attempted.
	ErrNothingToCommit = errors.New("nothing to commit, working tree clean")
	// ErrNothingToFetch means the tracked remote had no new commits.
	ErrNothingToFetch = errors.New("nothing to fetch from remote")
)

// PushRejectedMarker appears in a push result when the remote refused a
// non-fast-forward update.
const PushRejectedMarker = "REJECTED"

// GitExecutor performs atomic version-control primitives against a working
// tree and a remote endpoint. Implementations are external collaborators;
// the orchestrator only sequences them.
type GitExecutor interface {
	// Clone clones the remote into repoPath and returns the default branch name.
	Clone(ctx context.Context, repoPath, remoteURL, privateKey, publicKey string) (string, error)
	Checkout(ctx context.Context, repoPath, branch string) error
	CheckoutRemote(ctx context.Context, repoPath, branch string) error
	CreateAndCheckout(ctx context.Context, repoPath, branch string) error
	Fetch(ctx context.Context, repoPath, publicKey, privateKey string, prune bool) (string, error)
	// Commit stages everything and commits. Returns ErrNothingToCommit when
	// the tree is clean and allowEmpty is false.
	Commit(ctx context.Context, repoPath, message, authorName, authorEmail string, allowEmpty bool) (string, error)
	// Push returns the remote's result text; a non-fast-forward rejection
	// carries PushRejectedMarker.
	Push(ctx context.Context, repoPath, remoteURL, publicKey, privateKey, branch string) (string, error)
	Pull(ctx context.Context, repoPath, remoteURL, branch, privateKey, publicKey string) (*models.MergeStatus, error)
	Merge(ctx context.Context, repoPath, sourceBranch, destBranch string) (string, error)
	// IsMergeable performs a speculative merge. It reports conflicts in the
	// result rather than failing; the caller is responsible for resetting the
	// destination afterwards.
	IsMergeable(ctx context.Context, repoPath, sourceBranch, destBranch string) (*models.MergeStatus, error)
	ListBranches(ctx context.Context, repoPath, remoteURL, privateKey, publicKey string, fromRemote bool) ([]models.GitBranch, error)
	DeleteBranch(ctx context.Context, repoPath, branch string) error
	ResetHard(ctx context.Context, repoPath, branch string) error
	Status(ctx context.Context, repoPath, branch string) (*models.GitStatus, error)
	CommitHistory(ctx context.Context, repoPath string) ([]models.GitCommitEntry, error)
}

// FileStore is the working-tree materializer: it serializes an application
// snapshot into a file tree and deserializes a file tree back into a
// snapshot.
type FileStore interface {
	// SaveApplication materializes the snapshot into the working tree for the
	// given branch and returns the written path.
	SaveApplication(ctx context.Context, repoPath string, app *models.Application, branch string) (string, error)
	// LoadApplication reconstructs a snapshot from the working tree of the
	// given branch.
	LoadApplication(ctx context.Context, organizationID, defaultApplicationID, repoName, branch string) (*models.Application, error)
	IsEmpty(ctx context.Context, repoPath string) (bool, error)
	InitializeReadme(ctx context.Context, repoPath, viewURL, editURL string) error
	RemoveRepo(ctx context.Context, repoPath string) error
}

// ApplicationStore is the metadata store contract: CRUD for application
// records, branch lineage resolution, and the quota count.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetByBranchAndDefaultApp(ctx context.Context, branchName string, defaultApplicationID uuid.UUID) (*models.Application, error)
	ListByDefaultApp(ctx context.Context, defaultApplicationID uuid.UUID) ([]*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountPrivateReposByOrg(ctx context.Context, organizationID string) (int, error)
}

// ProfileStore persists author profiles per user
type ProfileStore interface {
	Get(ctx context.Context, userID, profileKey string) (*models.GitProfile, error)
	Upsert(ctx context.Context, userID, profileKey string, profile *models.GitProfile) error
}

// RemoteProbe detects whether a remote repository is private
type RemoteProbe interface {
	IsRepoPrivate(ctx context.Context, browserURL string) (bool, error)
}
