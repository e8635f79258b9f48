package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/logger"
	"github.com/appforge/gitsync/common/models"
)

// ProfileService resolves the author identity used to attribute commits.
// Resolution order: lineage-specific profile (when it opts out of the global
// one and is populated), then the global profile, then a platform-derived
// fallback from the user's own identity.
type ProfileService struct {
	profiles ProfileStore
	log      *logger.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(profiles ProfileStore, log *logger.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		log:      log,
	}
}

// GetOrCreateGlobal returns the user's global profile, seeding it from the
// platform identity when missing.
func (s *ProfileService) GetOrCreateGlobal(ctx context.Context, userID string) (*models.GitProfile, error) {
	profile, err := s.profiles.Get(ctx, userID, models.DefaultProfileKey)
	if err != nil {
		return nil, err
	}
	if profile != nil && profile.AuthorName != "" {
		return profile, nil
	}

	profile = platformFallbackProfile(userID)
	if err := s.profiles.Upsert(ctx, userID, models.DefaultProfileKey, profile); err != nil {
		return nil, err
	}

	s.log.Info("seeded global git profile from platform identity", "user_id", userID)
	return profile, nil
}

// GetForApplication returns the profile a commit on the lineage would use
func (s *ProfileService) GetForApplication(ctx context.Context, userID string, defaultApplicationID uuid.UUID) (*models.GitProfile, error) {
	profile, err := s.profiles.Get(ctx, userID, defaultApplicationID.String())
	if err != nil {
		return nil, err
	}
	if profile != nil && !profile.UseGlobalProfile && profile.AuthorName != "" {
		return profile, nil
	}
	return s.GetOrCreateGlobal(ctx, userID)
}

// ResolveForApplication is GetForApplication with the guarantee that the
// result carries a non-empty author name, falling back to the platform
// identity as the last resort.
func (s *ProfileService) ResolveForApplication(ctx context.Context, userID string, defaultApplicationID uuid.UUID) (*models.GitProfile, error) {
	profile, err := s.GetForApplication(ctx, userID, defaultApplicationID)
	if err != nil {
		return nil, err
	}
	if profile.AuthorName == "" {
		profile = platformFallbackProfile(userID)
	}
	return profile, nil
}

// StoreGlobal validates and stores the user's global profile
func (s *ProfileService) StoreGlobal(ctx context.Context, userID string, profile *models.GitProfile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	profile.UseGlobalProfile = true
	return s.profiles.Upsert(ctx, userID, models.DefaultProfileKey, profile)
}

// StoreForApplication stores a lineage-specific profile. A profile that opts
// into the global one only records the preference.
func (s *ProfileService) StoreForApplication(ctx context.Context, userID string, defaultApplicationID uuid.UUID, profile *models.GitProfile) error {
	if !profile.UseGlobalProfile {
		if err := validateProfile(profile); err != nil {
			return err
		}
	}
	return s.profiles.Upsert(ctx, userID, defaultApplicationID.String(), profile)
}

func validateProfile(profile *models.GitProfile) error {
	if profile == nil || strings.TrimSpace(profile.AuthorName) == "" {
		return apperrors.New(apperrors.InvalidParameter, "author name")
	}
	if strings.TrimSpace(profile.AuthorEmail) == "" {
		return apperrors.New(apperrors.InvalidParameter, "author email")
	}
	return nil
}

// platformFallbackProfile derives an author identity from the platform user
// id. The account name doubles as the author name; the email is synthesized
// when the id is not mail-shaped.
func platformFallbackProfile(userID string) *models.GitProfile {
	email := userID
	if !strings.Contains(email, "@") {
		email = fmt.Sprintf("%s@users.noreply.gitsync.local", userID)
	}
	return &models.GitProfile{
		AuthorName:       userID,
		AuthorEmail:      email,
		UseGlobalProfile: true,
	}
}
