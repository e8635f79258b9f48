package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

func TestGetStatus_MaterializesBeforeInspecting(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.git.statusResult = &models.GitStatus{
		Added:       []string{"pages/new.json"},
		AheadCount:  1,
		BehindCount: 0,
	}

	status, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)

	assert.Equal(t, 1, status.ModifiedCount())
	assert.Equal(t, []string{"main"}, env.files.saved)
	assert.Equal(t, 1, env.git.fetchCalls)
}

func TestGetStatus_IsIdempotent(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	first, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)
	second, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "main")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Reading status never commits, pushes, or deletes anything.
	assert.Empty(t, env.git.commits)
	assert.Empty(t, env.git.pushes)
	assert.Empty(t, env.git.deleted)
}

func TestGetStatus_StripsRemoteQualifier(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	_, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "origin/main")
	require.NoError(t, err)
	assert.Contains(t, env.git.checkouts, "main")
}

func TestGetStatus_LazilyMaterializesRemoteBranch(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	env.files.snapshot = &models.Application{Name: "storefront"}

	status, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "hotfix")
	require.NoError(t, err)
	require.NotNil(t, status)

	// A record for the branch now exists.
	app, err := env.apps.GetByBranchAndDefaultApp(context.Background(), "hotfix", root.ID)
	require.NoError(t, err)
	assert.Equal(t, "hotfix", app.GitMetadata.BranchName)
	assert.Equal(t, []string{"hotfix"}, env.git.remoteCheckouts)
}

func TestGetStatus_RequiresBranchName(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	_, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "")
	assert.True(t, apperrors.Is(err, apperrors.InvalidParameter))
}

func TestGetStatus_UnlinkedLineage(t *testing.T) {
	root := connectedRoot()
	root.GitMetadata = nil
	env := newTestEnv(root)

	_, err := env.svc.GetStatus(context.Background(), "user-1", root.ID, "main")
	assert.True(t, apperrors.Is(err, apperrors.InvalidGitConfiguration))
}
