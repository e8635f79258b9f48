package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/models"
)

func unconnectedRoot() *models.Application {
	id := uuid.New()
	return &models.Application{
		ID:             id,
		Name:           "storefront",
		OrganizationID: "org-1",
		GitMetadata: &models.GitApplicationMetadata{
			DefaultApplicationID: id,
			GitAuth: &models.GitAuth{
				PublicKey:  "ssh-ed25519 AAAA test",
				PrivateKey: "private",
			},
		},
	}
}

func TestConnect_Success(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)

	app, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	require.NoError(t, err)

	md := app.GitMetadata
	require.NotNil(t, md)
	assert.Equal(t, "storefront", md.RepoName)
	assert.Equal(t, "main", md.BranchName)
	assert.Equal(t, "main", md.DefaultBranchName)
	assert.Equal(t, "https://github.com/acme/storefront", md.BrowserSupportedRemoteURL)
	assert.Equal(t, root.ID, md.DefaultApplicationID)
	assert.NotNil(t, md.GitAuth)

	assert.True(t, env.files.readmeSeeded)
	require.Len(t, env.git.commits, 1)
	assert.Equal(t, "System generated commit, initial commit", env.git.commits[0].message)
	assert.Equal(t, []string{"main"}, env.git.pushes)
}

func TestConnect_MissingRemoteURL(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)

	_, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		OriginHeader: "https://app.example.com",
	})
	assert.True(t, apperrors.Is(err, apperrors.InvalidParameter))
}

func TestConnect_MissingDeployKey(t *testing.T) {
	root := unconnectedRoot()
	root.GitMetadata.GitAuth = nil
	env := newTestEnv(root)

	_, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	assert.True(t, apperrors.Is(err, apperrors.InvalidGitSSHConfiguration))
}

func TestConnect_NonEmptyCloneRejected(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)
	env.files.emptyClone = false

	_, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	assert.True(t, apperrors.Is(err, apperrors.InvalidGitRepo))
	assert.NotEmpty(t, env.files.removed, "rejected clone must be cleaned up")
}

func TestConnect_PrivateRepoQuotaExceeded(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)
	env.probe.isPrivate = true
	env.apps.privateCount = 3 // at the configured limit

	_, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	assert.True(t, apperrors.Is(err, apperrors.GitApplicationLimit))
	assert.Empty(t, env.git.commits, "quota failure must precede any git mutation")
}

func TestConnect_ProbeFailureDoesNotBlock(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)
	env.probe.err = errors.New("forge unreachable")

	app, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	require.NoError(t, err)
	assert.False(t, app.GitMetadata.IsRepoPrivate)
}

func TestConnect_RejectedPushRollsBack(t *testing.T) {
	root := unconnectedRoot()
	env := newTestEnv(root)
	env.git.pushResult = "REJECTED: non-fast-forward"

	_, err := env.svc.Connect(context.Background(), "user-1", root.ID, &ConnectRequest{
		RemoteURL:    "git@github.com:acme/storefront.git",
		OriginHeader: "https://app.example.com",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.GitActionFailed))

	// Metadata is cleared but the deploy key survives for a retry.
	stored, getErr := env.apps.GetByID(context.Background(), root.ID)
	require.NoError(t, getErr)
	assert.Empty(t, stored.GitMetadata.RepoName)
	assert.True(t, stored.GitMetadata.GitAuth.IsPopulated())
	assert.NotEmpty(t, env.files.removed)
}

func TestDetach_CascadesToBranchRecords(t *testing.T) {
	root := connectedRoot()
	feature := branchRecord(root, "feature")
	env := newTestEnv(root, feature)

	app, err := env.svc.Detach(context.Background(), root.ID)
	require.NoError(t, err)

	assert.Nil(t, app.GitMetadata)
	require.NotNil(t, app.DefaultApplicationID)
	assert.Equal(t, root.ID, *app.DefaultApplicationID)
	assert.Contains(t, env.apps.deleted, feature.ID)
	assert.NotEmpty(t, env.files.removed)

	// The lineage is no longer version-controlled.
	_, err = env.svc.GetStatus(context.Background(), "user-1", root.ID, "main")
	assert.True(t, apperrors.Is(err, apperrors.InvalidGitConfiguration))
}

func TestGenerateDeployKey_ReplacesPair(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)
	previous := root.GitMetadata.GitAuth.PublicKey

	auth, err := env.svc.GenerateDeployKey(context.Background(), root.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, auth.PublicKey)
	assert.NotEmpty(t, auth.PrivateKey)
	assert.NotEqual(t, previous, auth.PublicKey)
	assert.False(t, auth.GeneratedAt.IsZero())
}

func TestGetGitMetadata_StripsPrivateKey(t *testing.T) {
	root := connectedRoot()
	env := newTestEnv(root)

	md, err := env.svc.GetGitMetadata(context.Background(), root.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, md.GitAuth.PublicKey)
	assert.Empty(t, md.GitAuth.PrivateKey)

	// The stored record still holds the private half.
	stored, getErr := env.apps.GetByID(context.Background(), root.ID)
	require.NoError(t, getErr)
	assert.NotEmpty(t, stored.GitMetadata.GitAuth.PrivateKey)
}
