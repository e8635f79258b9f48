package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/logger"
	"github.com/appforge/gitsync/common/models"
)

func newProfileService() (*ProfileService, *fakeProfileStore) {
	store := newFakeProfileStore()
	return NewProfileService(store, logger.New("error", "json")), store
}

func TestGetOrCreateGlobal_SeedsFromPlatformIdentity(t *testing.T) {
	svc, _ := newProfileService()

	profile, err := svc.GetOrCreateGlobal(context.Background(), "jane")
	require.NoError(t, err)

	assert.Equal(t, "jane", profile.AuthorName)
	assert.Equal(t, "jane@users.noreply.gitsync.local", profile.AuthorEmail)
	assert.True(t, profile.UseGlobalProfile)
}

func TestGetOrCreateGlobal_MailShapedIdentity(t *testing.T) {
	svc, _ := newProfileService()

	profile, err := svc.GetOrCreateGlobal(context.Background(), "jane@acme.dev")
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.dev", profile.AuthorEmail)
}

func TestResolveForApplication_PrefersPinnedProfile(t *testing.T) {
	svc, store := newProfileService()
	appID := uuid.New()
	require.NoError(t, store.Upsert(context.Background(), "jane", appID.String(),
		&models.GitProfile{AuthorName: "Jane Release", AuthorEmail: "release@acme.dev"}))

	profile, err := svc.ResolveForApplication(context.Background(), "jane", appID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Release", profile.AuthorName)
}

func TestResolveForApplication_PinnedOptingIntoGlobal(t *testing.T) {
	svc, store := newProfileService()
	appID := uuid.New()
	require.NoError(t, store.Upsert(context.Background(), "jane", models.DefaultProfileKey,
		&models.GitProfile{AuthorName: "Jane Global", AuthorEmail: "jane@acme.dev"}))
	require.NoError(t, store.Upsert(context.Background(), "jane", appID.String(),
		&models.GitProfile{UseGlobalProfile: true}))

	profile, err := svc.ResolveForApplication(context.Background(), "jane", appID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Global", profile.AuthorName)
}

func TestResolveForApplication_NeverReturnsEmptyName(t *testing.T) {
	svc, store := newProfileService()
	appID := uuid.New()
	// A corrupt global profile with no author name.
	require.NoError(t, store.Upsert(context.Background(), "jane", models.DefaultProfileKey,
		&models.GitProfile{}))

	profile, err := svc.ResolveForApplication(context.Background(), "jane", appID)
	require.NoError(t, err)
	assert.NotEmpty(t, profile.AuthorName)
}

func TestStoreGlobal_Validates(t *testing.T) {
	svc, _ := newProfileService()

	err := svc.StoreGlobal(context.Background(), "jane", &models.GitProfile{AuthorEmail: "jane@acme.dev"})
	assert.True(t, apperrors.Is(err, apperrors.InvalidParameter))

	err = svc.StoreGlobal(context.Background(), "jane", &models.GitProfile{AuthorName: "Jane"})
	assert.True(t, apperrors.Is(err, apperrors.InvalidParameter))

	err = svc.StoreGlobal(context.Background(), "jane", &models.GitProfile{
		AuthorName:  "Jane",
		AuthorEmail: "jane@acme.dev",
	})
	require.NoError(t, err)
}

func TestStoreForApplication_GlobalOptInSkipsValidation(t *testing.T) {
	svc, store := newProfileService()
	appID := uuid.New()

	err := svc.StoreForApplication(context.Background(), "jane", appID, &models.GitProfile{UseGlobalProfile: true})
	require.NoError(t, err)

	pinned, err := store.Get(context.Background(), "jane", appID.String())
	require.NoError(t, err)
	assert.True(t, pinned.UseGlobalProfile)
}
