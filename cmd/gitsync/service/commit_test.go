package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

func TestCommit_UsesSystemMessageWhenEmpty(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	result, err := env.svc.Commit(context.Background(), "user-1", root.ID, "main", &CommitRequest{})
	require.NoError(t, err)

	assert.Contains(t, result, "committed successfully!")
	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "System generated commit, initial commit", env.git.commits[0].message)
	assert.Equal(t, []string{"main"}, env.files.saved)
	assert.False(t, root.GitMetadata.LastCommittedAt.IsZero())
}

func TestCommit_CustomMessageAndAuthor(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	require.NoError(t, env.profiles.Upsert(context.Background(), "user-1", models.DefaultProfileKey,
		&models.GitProfile{AuthorName: "Jane Dev", AuthorEmail: "jane@acme.dev"}))

	_, err := env.svc.Commit(context.Background(), "user-1", root.ID, "main", &CommitRequest{
		CommitMessage: "add checkout page",
	})
	require.NoError(t, err)

	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "add checkout page", env.git.commits[0].message)
	assert.Equal(t, "Jane Dev", env.git.commits[0].authorName)
	assert.Equal(t, "jane@acme.dev", env.git.commits[0].authorEmail)
}

func TestCommit_BranchRecordNeverStoresKeyPair(t *testing.T) {
	root := connectedRoot()
	feature := branchRecord(root, "feature-x")
	env := newTestEnv(root, feature)

	_, err := env.svc.Commit(context.Background(), "user-1", root.ID, "feature-x", &CommitRequest{DoPush: true})
	require.NoError(t, err)

	stored, getErr := env.apps.GetByID(context.Background(), feature.ID)
	require.NoError(t, getErr)
	assert.Nil(t, stored.GitMetadata.GitAuth, "only the lineage root durably holds the key pair")
	assert.Equal(t, []string{"feature-x"}, env.git.pushes, "push still authenticates with the root's key")
}

func TestCommit_CleanTreeIsNotAFailure(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.commitErr = ErrNothingToCommit

	result, err := env.svc.Commit(context.Background(), "user-1", root.ID, "main", &CommitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "On current branch nothing to commit, working tree clean", result)
}

func TestCommit_WithPush(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.pushResult = "pushed to origin/main"

	result, err := env.svc.Commit(context.Background(), "user-1", root.ID, "main", &CommitRequest{DoPush: true})
	require.NoError(t, err)

	assert.Contains(t, result, "pushed to origin/main")
	assert.Equal(t, []string{"main"}, env.git.pushes)
}

func TestCommit_RequiresBranchName(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	_, err := env.svc.Commit(context.Background(), "user-1", root.ID, "", &CommitRequest{})
	assert.True(t, apperrors.Is(err, apperrors.InvalidParameter))
}

func TestPush_RequiresAtLeastOneCommit(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.history = nil

	_, err := env.svc.Push(context.Background(), "user-1", root.ID, "main")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.GitActionFailed))
	assert.Contains(t, err.Error(), "no commits yet")
	assert.Empty(t, env.git.pushes)
}

func TestPush_RejectedIsDistinctFromFailure(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.history = []models.GitCommitEntry{{Hash: "abc123"}}
	env.git.pushResult = "REJECTED: fetch first"

	_, err := env.svc.Push(context.Background(), "user-1", root.ID, "main")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.GitActionFailed))
	assert.Contains(t, err.Error(), "pull the remote changes first")
}

func TestPush_Success(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.history = []models.GitCommitEntry{{Hash: "abc123"}}

	result, err := env.svc.Push(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, "pushed", result)
}

func TestCommitHistory(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.history = []models.GitCommitEntry{
		{Hash: "def456", Message: "second"},
		{Hash: "abc123", Message: "first"},
	}

	history, err := env.svc.CommitHistory(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "def456", history[0].Hash)
	assert.Contains(t, env.git.checkouts, "main")
}
