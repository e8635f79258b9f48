package container

import (
	"fmt"

	"github.com/appforge/gitsync/cmd/gitsync/executor"
	"github.com/appforge/gitsync/cmd/gitsync/repository"
	"github.com/appforge/gitsync/cmd/gitsync/service"
	"github.com/appforge/gitsync/common/bootstrap"
	"github.com/appforge/gitsync/common/locker"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	ApplicationRepo *repository.ApplicationRepository
	ProfileRepo     *repository.GitProfileRepository

	// Collaborators
	GitExecutor   service.GitExecutor
	SnapshotStore service.FileStore
	RemoteProbe   service.RemoteProbe
	Locks         *locker.Keyed

	// Services
	ProfileService *service.ProfileService
	GitSyncService *service.GitSyncService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	// Repositories
	applicationRepo := repository.NewApplicationRepository(components.DB)
	profileRepo := repository.NewGitProfileRepository(components.DB)

	// Concrete collaborators
	gitExecutor, err := executor.NewCLIExecutor(components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create git executor: %w", err)
	}
	snapshotStore := executor.NewSnapshotStore(components.Config.Git.RepoRoot, components.Logger)
	remoteProbe := service.NewHTTPRemoteProbe(
		components.Config.Git.RemoteProbeTimeout,
		components.Cache,
		components.Logger,
	)
	locks := locker.NewKeyed()

	// Services (bottom-up: dependencies first)
	profileService := service.NewProfileService(profileRepo, components.Logger)
	gitSyncService := service.NewGitSyncService(&service.GitSyncServiceOpts{
		Apps:       applicationRepo,
		ProfileSvc: profileService,
		Git:        gitExecutor,
		Files:      snapshotStore,
		Probe:      remoteProbe,
		Locks:      locks,
		Components: components,
	})

	return &Container{
		Components:      components,
		ApplicationRepo: applicationRepo,
		ProfileRepo:     profileRepo,
		GitExecutor:     gitExecutor,
		SnapshotStore:   snapshotStore,
		RemoteProbe:     remoteProbe,
		Locks:           locks,
		ProfileService:  profileService,
		GitSyncService:  gitSyncService,
	}, nil
}
