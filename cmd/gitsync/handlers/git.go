package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/appforge/gitsync/cmd/gitsync/middleware"
	"github.com/appforge/gitsync/cmd/gitsync/service"
	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/bootstrap"
	"github.com/appforge/gitsync/common/worker"
)

// GitHandler handles git orchestration requests
type GitHandler struct {
	gitSvc     *service.GitSyncService
	components *bootstrap.Components
}

// NewGitHandler creates a new git handler
func NewGitHandler(gitSvc *service.GitSyncService, components *bootstrap.Components) *GitHandler {
	return &GitHandler{
		gitSvc:     gitSvc,
		components: components,
	}
}

func appID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("defaultApplicationId"))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.InvalidParameter, "application id")
	}
	return id, nil
}

func (h *GitHandler) fail(c echo.Context, err error) error {
	h.components.Logger.Warn("git operation failed",
		"path", c.Path(),
		"code", string(apperrors.CodeOf(err)),
		"error", err)

	return c.JSON(apperrors.HTTPStatus(err), map[string]interface{}{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err),
	})
}

// respondDetached waits for a detached operation with the request context.
// When the caller goes away the operation keeps running; the wait error is
// reported but the underlying work is never interrupted.
func respondDetached[T any](h *GitHandler, c echo.Context, status int, result *worker.Result[T]) error {
	value, err := result.Wait(c.Request().Context())
	if err != nil {
		if c.Request().Context().Err() != nil {
			return c.JSON(http.StatusAccepted, map[string]interface{}{
				"status": "operation still running, the result will be applied when it completes",
			})
		}
		return h.fail(c, err)
	}
	return c.JSON(status, map[string]interface{}{"data": value})
}

// Connect links an application lineage to a remote repository
// POST /api/v1/git/connect/:defaultApplicationId
func (h *GitHandler) Connect(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	req := &service.ConnectRequest{}
	if err := c.Bind(req); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	req.OriginHeader = c.Request().Header.Get("Origin")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Connect(ctx, userID, id, req)
	}))
}

// Commit commits the branch's current snapshot
// POST /api/v1/git/commit/:defaultApplicationId?branchName=...
func (h *GitHandler) Commit(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	req := &service.CommitRequest{}
	if err := c.Bind(req); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusCreated, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Commit(ctx, userID, id, branch, req)
	}))
}

// Push pushes the branch to its tracked remote
// POST /api/v1/git/push/:defaultApplicationId?branchName=...
func (h *GitHandler) Push(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Push(ctx, userID, id, branch)
	}))
}

// Pull fetches and merges the tracked remote branch
// POST /api/v1/git/pull/:defaultApplicationId?branchName=...
func (h *GitHandler) Pull(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Pull(ctx, userID, id, branch)
	}))
}

// CreateBranch creates a new branch from a local source branch
// POST /api/v1/git/branch/:defaultApplicationId?srcBranch=...
func (h *GitHandler) CreateBranch(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req struct {
		BranchName string `json:"branchName"`
	}
	if err := c.Bind(&req); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	src := c.QueryParam("srcBranch")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusCreated, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.CreateBranch(ctx, userID, id, req.BranchName, src)
	}))
}

// CheckoutBranch resolves a local branch or checks out a remote one
// GET /api/v1/git/checkout-branch/:defaultApplicationId?branchName=...
func (h *GitHandler) CheckoutBranch(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.CheckoutBranch(ctx, userID, id, branch)
	}))
}

// ListBranches lists the lineage's branches, optionally pruning stale ones
// GET /api/v1/git/branches/:defaultApplicationId?pruneBranches=true&currentBranch=...
func (h *GitHandler) ListBranches(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	prune, _ := strconv.ParseBool(c.QueryParam("pruneBranches"))
	current := c.QueryParam("currentBranch")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.ListBranches(ctx, userID, id, prune, current)
	}))
}

// Status computes the branch status against its tracked remote
// GET /api/v1/git/status/:defaultApplicationId?branchName=...
func (h *GitHandler) Status(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.GetStatus(ctx, userID, id, branch)
	}))
}

// Merge merges one branch into another
// POST /api/v1/git/merge/:defaultApplicationId
func (h *GitHandler) Merge(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	req := &service.MergeRequest{}
	if err := c.Bind(req); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Merge(ctx, userID, id, req)
	}))
}

// MergeStatus runs the speculative merge probe
// POST /api/v1/git/merge/status/:defaultApplicationId
func (h *GitHandler) MergeStatus(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	req := &service.MergeRequest{}
	if err := c.Bind(req); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.IsBranchMergeable(ctx, userID, id, req)
	}))
}

// CreateConflictedBranch escapes a conflicted state to the remote
// POST /api/v1/git/conflicted-branch/:defaultApplicationId?branchName=...
func (h *GitHandler) CreateConflictedBranch(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	return respondDetached(h, c, http.StatusCreated, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.CreateConflictedBranch(ctx, userID, id, branch)
	}))
}

// Detach unlinks the lineage from version control
// POST /api/v1/git/disconnect/:defaultApplicationId
func (h *GitHandler) Detach(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	return respondDetached(h, c, http.StatusOK, worker.Detach(func(ctx context.Context) (interface{}, error) {
		return h.gitSvc.Detach(ctx, id)
	}))
}

// GenerateDeployKey creates a fresh deploy key pair for the lineage
// POST /api/v1/git/deploy-key/:defaultApplicationId
func (h *GitHandler) GenerateDeployKey(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	auth, err := h.gitSvc.GenerateDeployKey(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}

	// The private half never leaves the metadata store.
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"publicKey":   auth.PublicKey,
			"generatedAt": auth.GeneratedAt,
		},
	})
}

// GetMetadata returns the lineage's version-control metadata
// GET /api/v1/git/metadata/:defaultApplicationId
func (h *GitHandler) GetMetadata(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}

	md, err := h.gitSvc.GetGitMetadata(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": md})
}

// CommitHistory lists the branch's commit log
// GET /api/v1/git/commit-history/:defaultApplicationId?branchName=...
func (h *GitHandler) CommitHistory(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	branch := c.QueryParam("branchName")
	userID := middleware.GetUserID(c)

	history, err := h.gitSvc.CommitHistory(c.Request().Context(), userID, id, branch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": history})
}
