package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

func TestPull_RequiresCleanTree(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.statusResult = &models.GitStatus{Modified: []string{"application.json"}}

	_, err := env.svc.Pull(context.Background(), "user-1", root.ID, "main")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.GitActionFailed))
	assert.Contains(t, err.Error(), "commit them before pulling")
}

func TestPull_NothingToFetchIsSoftSuccess(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.pullErr = ErrNothingToFetch

	result, err := env.svc.Pull(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)

	assert.True(t, result.MergeStatus.MergeAble)
	assert.Contains(t, result.MergeStatus.Status, "nothing to fetch")
	assert.Empty(t, env.git.commits, "an up-to-date branch must not be re-committed")
}

func TestPull_BranchRecordNeverStoresKeyPair(t *testing.T) {
	root := connectedRoot()
	feature := branchRecord(root, "feature-x")
	env := newTestEnv(root, feature)

	_, err := env.svc.Pull(context.Background(), "user-1", root.ID, "feature-x")
	require.NoError(t, err)

	stored, getErr := env.apps.GetByID(context.Background(), feature.ID)
	require.NoError(t, getErr)
	assert.Nil(t, stored.GitMetadata.GitAuth, "only the lineage root durably holds the key pair")
}

func TestPull_SyncCommitAttributedToResolvedAuthor(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	require.NoError(t, env.profiles.Upsert(context.Background(), "user-1", models.DefaultProfileKey,
		&models.GitProfile{AuthorName: "Jane Dev", AuthorEmail: "jane@acme.dev"}))

	_, err := env.svc.Pull(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)

	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "Jane Dev", env.git.commits[0].authorName)
	assert.Equal(t, "jane@acme.dev", env.git.commits[0].authorEmail)
}

func TestPull_RehydratesAndReconverges(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.files.snapshot = &models.Application{
		Name:      "storefront-v2",
		PageIDs:   []string{"page-1", "page-2"},
		ActionIDs: []string{"action-9"},
	}

	result, err := env.svc.Pull(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)

	app := result.Application
	assert.Equal(t, "storefront-v2", app.Name)
	assert.Equal(t, []string{"page-1", "page-2"}, app.PageIDs)
	assert.Equal(t, []string{"action-9"}, app.ActionIDs)

	// The pulled state is committed and pushed right back.
	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "System generated commit, for syncing changes with remote after git pull",
		env.git.commits[0].message)
	assert.Equal(t, []string{"main"}, env.git.pushes)
}

func TestPull_FailureIsTyped(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.pullErr = assert.AnError

	_, err := env.svc.Pull(context.Background(), "user-1", root.ID, "main")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.GitActionFailed))
}

func TestApplySnapshot_PreservesIdentity(t *testing.T) {
	root := connectedRoot()
	id := root.ID

	applySnapshot(root, &models.Application{Name: "renamed", PageIDs: []string{"p"}})

	assert.Equal(t, id, root.ID)
	assert.Equal(t, "renamed", root.Name)
	assert.NotNil(t, root.GitMetadata)

	// An empty snapshot name never erases the record's.
	applySnapshot(root, &models.Application{})
	assert.Equal(t, "renamed", root.Name)
}
