package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

func TestCreateBranch_Success(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.remoteBranches = []models.GitBranch{{BranchName: "main", IsDefault: true}}

	app, err := env.svc.CreateBranch(context.Background(), "user-1", root.ID, "feature", "main")
	require.NoError(t, err)

	assert.NotEqual(t, root.ID, app.ID)
	require.NotNil(t, app.DefaultApplicationID)
	assert.Equal(t, root.ID, *app.DefaultApplicationID)
	assert.Equal(t, "feature", app.GitMetadata.BranchName)
	assert.Equal(t, root.PageIDs, app.PageIDs)
	assert.Contains(t, env.git.created, "feature")

	// The fresh branch is committed and pushed immediately.
	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "System generated commit, after creating a new branch: feature",
		env.git.commits[0].message)
	assert.Equal(t, []string{"feature"}, env.git.pushes)
}

func TestCreateBranch_RecordNeverInheritsKeyOrPrivacy(t *testing.T) {
	root := connectedRoot()
	root.GitMetadata.IsRepoPrivate = true
	env := newTestEnv(root)

	app, err := env.svc.CreateBranch(context.Background(), "user-1", root.ID, "feature", "main")
	require.NoError(t, err)

	stored, getErr := env.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.GitMetadata.IsRepoPrivate)
	assert.Nil(t, stored.GitMetadata.GitAuth, "only the lineage root durably holds the key pair")
}

func TestCreateBranch_RemoteCollision(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.remoteBranches = []models.GitBranch{{BranchName: "origin/feature"}}

	_, err := env.svc.CreateBranch(context.Background(), "user-1", root.ID, "feature", "main")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.DuplicateBranchName))
	assert.Empty(t, env.git.created)
}

func TestCreateBranch_RejectsRemoteQualifiedNames(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	_, err := env.svc.CreateBranch(context.Background(), "user-1", root.ID, "origin/feature", "main")
	assert.True(t, apperrors.Is(err, apperrors.UnsupportedRemoteBranch))

	_, err = env.svc.CreateBranch(context.Background(), "user-1", root.ID, "feature", "origin/main")
	assert.True(t, apperrors.Is(err, apperrors.UnsupportedRemoteBranch))
}

func TestCheckoutBranch_LocalResolvesRecord(t *testing.T) {
	root := connectedRoot()
	feature := branchRecord(root, "feature")
	env := newTestEnv(root, feature)

	app, err := env.svc.CheckoutBranch(context.Background(), "user-1", root.ID, "feature")
	require.NoError(t, err)

	assert.Equal(t, feature.ID, app.ID)
	// The key pair is borrowed per operation, never written onto the record.
	assert.Nil(t, app.GitMetadata.GitAuth)
	assert.Empty(t, env.git.remoteCheckouts, "local checkout must not touch the remote")
}

func TestCheckoutBranch_RemoteAlreadyLocal(t *testing.T) {
	root := connectedRoot()
	feature := branchRecord(root, "feature")
	env := newTestEnv(root, feature)

	_, err := env.svc.CheckoutBranch(context.Background(), "user-1", root.ID, "origin/feature")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.DuplicateBranchName))
}

func TestCheckoutBranch_RemoteMaterializesRecord(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.files.snapshot = &models.Application{Name: "storefront", PageIDs: []string{"page-7"}}

	app, err := env.svc.CheckoutBranch(context.Background(), "user-1", root.ID, "origin/hotfix")
	require.NoError(t, err)

	assert.Equal(t, "hotfix", app.GitMetadata.BranchName)
	assert.Equal(t, []string{"page-7"}, app.PageIDs, "content must come from the working tree")
	assert.Equal(t, []string{"hotfix"}, env.git.remoteCheckouts)
	assert.Equal(t, 1, env.git.fetchCalls)
}

func TestCheckoutBranch_RemoteMissingDeployKey(t *testing.T) {
	root := connectedRoot()
	root.GitMetadata.GitAuth = nil
	env := newTestEnv(root)

	_, err := env.svc.CheckoutBranch(context.Background(), "user-1", root.ID, "origin/hotfix")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.InvalidGitSSHConfiguration))
	assert.Empty(t, env.git.remoteCheckouts)
}

func TestListBranches_MarksRecordedDefault(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.localBranches = []models.GitBranch{
		{BranchName: "main"},
		{BranchName: "feature"},
	}

	branches, err := env.svc.ListBranches(context.Background(), "user-1", root.ID, false, "main")
	require.NoError(t, err)

	require.Len(t, branches, 2)
	for _, b := range branches {
		assert.Equal(t, b.BranchName == "main", b.IsDefault)
	}
}

func TestListBranches_PruneDeletesStaleLocals(t *testing.T) {
	root := connectedRoot()
	stale := branchRecord(root, "stale")
	current := branchRecord(root, "current-work")
	env := newTestEnv(root, stale, current)
	env.git.remoteBranches = []models.GitBranch{{BranchName: "main", IsDefault: true}}

	_, err := env.svc.ListBranches(context.Background(), "user-1", root.ID, true, "current-work")
	require.NoError(t, err)

	assert.Contains(t, env.apps.deleted, stale.ID)
	assert.Contains(t, env.git.deleted, "stale")
	// The current branch and the lineage primary are never pruned.
	assert.NotContains(t, env.apps.deleted, current.ID)
	assert.NotContains(t, env.apps.deleted, root.ID)
}

func TestListBranches_AdoptsMovedRemoteDefault(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.remoteBranches = []models.GitBranch{
		{BranchName: "main"},
		{BranchName: "trunk", IsDefault: true},
	}

	_, err := env.svc.ListBranches(context.Background(), "user-1", root.ID, true, "main")
	require.NoError(t, err)

	stored, getErr := env.apps.GetByID(context.Background(), root.ID)
	require.NoError(t, getErr)
	assert.Equal(t, "trunk", stored.GitMetadata.DefaultBranchName)
}
