package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/appforge/gitsync/cmd/gitsync/container"
	"github.com/appforge/gitsync/cmd/gitsync/handlers"
	"github.com/appforge/gitsync/cmd/gitsync/middleware"
)

// RegisterGitRoutes registers all git orchestration routes
func RegisterGitRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewGitHandler(c.GitSyncService, c.Components)

	// Every git route requires a calling identity and organization.
	git := e.Group("/api/v1/git")
	git.Use(middleware.RequireIdentity())
	{
		git.POST("/connect/:defaultApplicationId", h.Connect)                      // POST /api/v1/git/connect/{defaultApplicationId}
		git.POST("/commit/:defaultApplicationId", h.Commit)                        // POST /api/v1/git/commit/{defaultApplicationId}?branchName=
		git.POST("/push/:defaultApplicationId", h.Push)                            // POST /api/v1/git/push/{defaultApplicationId}?branchName=
		git.POST("/pull/:defaultApplicationId", h.Pull)                            // POST /api/v1/git/pull/{defaultApplicationId}?branchName=
		git.POST("/branch/:defaultApplicationId", h.CreateBranch)                  // POST /api/v1/git/branch/{defaultApplicationId}?srcBranch=
		git.GET("/checkout-branch/:defaultApplicationId", h.CheckoutBranch)        // GET /api/v1/git/checkout-branch/{defaultApplicationId}?branchName=
		git.GET("/branches/:defaultApplicationId", h.ListBranches)                 // GET /api/v1/git/branches/{defaultApplicationId}?pruneBranches=
		git.GET("/status/:defaultApplicationId", h.Status)                         // GET /api/v1/git/status/{defaultApplicationId}?branchName=
		git.POST("/merge/:defaultApplicationId", h.Merge)                          // POST /api/v1/git/merge/{defaultApplicationId}
		git.POST("/merge/status/:defaultApplicationId", h.MergeStatus)             // POST /api/v1/git/merge/status/{defaultApplicationId}
		git.POST("/conflicted-branch/:defaultApplicationId", h.CreateConflictedBranch) // POST /api/v1/git/conflicted-branch/{defaultApplicationId}?branchName=
		git.POST("/disconnect/:defaultApplicationId", h.Detach)                    // POST /api/v1/git/disconnect/{defaultApplicationId}
		git.POST("/deploy-key/:defaultApplicationId", h.GenerateDeployKey)         // POST /api/v1/git/deploy-key/{defaultApplicationId}
		git.GET("/metadata/:defaultApplicationId", h.GetMetadata)                  // GET /api/v1/git/metadata/{defaultApplicationId}
		git.GET("/commit-history/:defaultApplicationId", h.CommitHistory)          // GET /api/v1/git/commit-history/{defaultApplicationId}?branchName=
	}
}
