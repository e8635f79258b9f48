package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/appforge/gitsync/cmd/gitsync/service"
	"github.com/appforge/gitsync/common/logger"
	"github.com/appforge/gitsync/common/models"
)

const historyLimit = 20

// CLIExecutor implements the version-control primitives by shelling out to
// the git binary found on PATH. SSH authentication uses a throwaway identity
// file per remote invocation so deploy keys never land in the repository
// config.
type CLIExecutor struct {
	gitPath string
	logger  *logger.Logger
}

// NewCLIExecutor creates a new CLI-backed executor
func NewCLIExecutor(log *logger.Logger) (*CLIExecutor, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("no git binary on PATH: %w", err)
	}
	return &CLIExecutor{gitPath: p, logger: log}, nil
}

type runResult struct {
	stdout string
	stderr string
}

func (r runResult) combined() string {
	return strings.TrimSpace(r.stdout + "\n" + r.stderr)
}

// run executes one git command in dir with optional extra environment
func (e *CLIExecutor) run(ctx context.Context, dir string, env []string, args ...string) (runResult, error) {
	cmd := exec.CommandContext(ctx, e.gitPath, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := runResult{stdout: stdout.String(), stderr: stderr.String()}

	e.logger.Debug("git command finished",
		"args", strings.Join(args, " "),
		"duration", time.Since(start),
		"ok", err == nil)

	if err != nil {
		return res, fmt.Errorf("git %s: %w: %s", args[0], err, res.combined())
	}
	return res, nil
}

// sshEnv materializes the deploy key into a temp identity file and returns
// the environment pointing git at it. The cleanup func removes the file.
func sshEnv(privateKey string) ([]string, func(), error) {
	if privateKey == "" {
		return nil, func() {}, nil
	}
	f, err := os.CreateTemp("", "gitsync-key-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write deploy key: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o600); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("failed to protect deploy key: %w", err)
	}
	if _, err := f.WriteString(privateKey); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("failed to write deploy key: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("failed to write deploy key: %w", err)
	}

	env := []string{fmt.Sprintf(
		"GIT_SSH_COMMAND=ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeyChecking=no", f.Name())}
	return env, func() { os.Remove(f.Name()) }, nil
}

// Clone clones the remote into repoPath and returns the default branch name
func (e *CLIExecutor) Clone(ctx context.Context, repoPath, remoteURL, privateKey, publicKey string) (string, error) {
	env, cleanup, err := sshEnv(privateKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	parent := filepath.Dir(repoPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare clone directory: %w", err)
	}
	if _, err := e.run(ctx, parent, env, "clone", remoteURL, filepath.Base(repoPath)); err != nil {
		return "", err
	}

	res, err := e.run(ctx, repoPath, nil, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.stdout), nil
}

func (e *CLIExecutor) Checkout(ctx context.Context, repoPath, branch string) error {
	_, err := e.run(ctx, repoPath, nil, "checkout", branch)
	return err
}

// CheckoutRemote creates a local branch tracking origin/branch
func (e *CLIExecutor) CheckoutRemote(ctx context.Context, repoPath, branch string) error {
	_, err := e.run(ctx, repoPath, nil, "checkout", "-b", branch, "--track", "origin/"+branch)
	return err
}

func (e *CLIExecutor) CreateAndCheckout(ctx context.Context, repoPath, branch string) error {
	_, err := e.run(ctx, repoPath, nil, "checkout", "-b", branch)
	return err
}

func (e *CLIExecutor) Fetch(ctx context.Context, repoPath, publicKey, privateKey string, prune bool) (string, error) {
	env, cleanup, err := sshEnv(privateKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	args := []string{"fetch", "origin"}
	if prune {
		args = append(args, "--prune")
	}
	res, err := e.run(ctx, repoPath, env, args...)
	if err != nil {
		return "", err
	}
	return res.combined(), nil
}

// Commit stages the full working tree and commits it with the given author
func (e *CLIExecutor) Commit(ctx context.Context, repoPath, message, authorName, authorEmail string, allowEmpty bool) (string, error) {
	if _, err := e.run(ctx, repoPath, nil, "add", "-A"); err != nil {
		return "", err
	}

	args := []string{"commit", "-m", message,
		"--author", fmt.Sprintf("%s <%s>", authorName, authorEmail)}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	env := []string{
		"GIT_COMMITTER_NAME=" + authorName,
		"GIT_COMMITTER_EMAIL=" + authorEmail,
	}
	res, err := e.run(ctx, repoPath, env, args...)
	if err != nil {
		if strings.Contains(err.Error(), "nothing to commit") {
			return "", service.ErrNothingToCommit
		}
		return "", err
	}
	return res.combined(), nil
}

// Push pushes the branch to origin. A non-fast-forward rejection is not an
// error; it is reported in the result text so the caller can decide.
func (e *CLIExecutor) Push(ctx context.Context, repoPath, remoteURL, publicKey, privateKey, branch string) (string, error) {
	env, cleanup, err := sshEnv(privateKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	res, err := e.run(ctx, repoPath, env, "push", "origin", branch)
	out := res.combined()
	if err != nil {
		if strings.Contains(out, "rejected") || strings.Contains(out, "non-fast-forward") {
			return service.PushRejectedMarker + ": " + out, nil
		}
		return "", err
	}
	return out, nil
}

// Pull fetches the tracked remote branch and merges it into the current
// branch. Returns ErrNothingToFetch when the remote has no new commits.
func (e *CLIExecutor) Pull(ctx context.Context, repoPath, remoteURL, branch, privateKey, publicKey string) (*models.MergeStatus, error) {
	env, cleanup, err := sshEnv(privateKey)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := e.run(ctx, repoPath, env, "fetch", "origin", branch); err != nil {
		return nil, err
	}

	res, err := e.run(ctx, repoPath, nil, "rev-list", "--count", "HEAD..origin/"+branch)
	if err != nil {
		return nil, err
	}
	behind, _ := strconv.Atoi(strings.TrimSpace(res.stdout))
	if behind == 0 {
		return nil, service.ErrNothingToFetch
	}

	if _, err := e.run(ctx, repoPath, nil, "merge", "origin/"+branch); err != nil {
		return nil, err
	}
	return &models.MergeStatus{
		Status:    fmt.Sprintf("%d commits merged from origin/%s", behind, branch),
		MergeAble: true,
	}, nil
}

// Merge merges sourceBranch into destBranch. Conflicts abort the merge and
// surface as an error so no half-merged state is left in the tree.
func (e *CLIExecutor) Merge(ctx context.Context, repoPath, sourceBranch, destBranch string) (string, error) {
	if _, err := e.run(ctx, repoPath, nil, "checkout", destBranch); err != nil {
		return "", err
	}
	res, err := e.run(ctx, repoPath, nil, "merge", sourceBranch)
	if err != nil {
		if strings.Contains(err.Error(), "CONFLICT") {
			e.run(ctx, repoPath, nil, "merge", "--abort")
			return "", fmt.Errorf("merge conflict between %s and %s: %w", sourceBranch, destBranch, err)
		}
		return "", err
	}
	return res.combined(), nil
}

// IsMergeable runs a speculative no-commit merge of sourceBranch into
// destBranch and reports conflicts without failing. The working tree is left
// checked out on destBranch with the probe aborted; the caller is expected
// to hard-reset afterwards.
func (e *CLIExecutor) IsMergeable(ctx context.Context, repoPath, sourceBranch, destBranch string) (*models.MergeStatus, error) {
	if _, err := e.run(ctx, repoPath, nil, "checkout", destBranch); err != nil {
		return nil, err
	}

	_, mergeErr := e.run(ctx, repoPath, nil, "merge", "--no-commit", "--no-ff", sourceBranch)
	if mergeErr == nil {
		e.run(ctx, repoPath, nil, "merge", "--abort")
		return &models.MergeStatus{MergeAble: true, Status: "MERGEABLE"}, nil
	}

	res, err := e.run(ctx, repoPath, nil, "diff", "--name-only", "--diff-filter=U")
	e.run(ctx, repoPath, nil, "merge", "--abort")
	if err != nil {
		return nil, mergeErr
	}

	var conflicting []string
	for _, line := range strings.Split(res.stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			conflicting = append(conflicting, line)
		}
	}
	return &models.MergeStatus{
		MergeAble:        false,
		Status:           "CONFLICTS",
		ConflictingFiles: conflicting,
	}, nil
}

func (e *CLIExecutor) ListBranches(ctx context.Context, repoPath, remoteURL, privateKey, publicKey string, fromRemote bool) ([]models.GitBranch, error) {
	if fromRemote {
		return e.listRemoteBranches(ctx, repoPath, privateKey)
	}
	return e.listLocalBranches(ctx, repoPath)
}

func (e *CLIExecutor) listRemoteBranches(ctx context.Context, repoPath, privateKey string) ([]models.GitBranch, error) {
	env, cleanup, err := sshEnv(privateKey)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	head, err := e.run(ctx, repoPath, env, "ls-remote", "--symref", "origin", "HEAD")
	if err != nil {
		return nil, err
	}
	defaultBranch := ""
	for _, line := range strings.Split(head.stdout, "\n") {
		// "ref: refs/heads/main\tHEAD"
		if strings.HasPrefix(line, "ref: refs/heads/") {
			defaultBranch = strings.TrimPrefix(strings.Fields(line)[1], "refs/heads/")
		}
	}

	res, err := e.run(ctx, repoPath, env, "ls-remote", "--heads", "origin")
	if err != nil {
		return nil, err
	}

	var branches []models.GitBranch
	for _, line := range strings.Split(res.stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "refs/heads/")
		branches = append(branches, models.GitBranch{
			BranchName: name,
			IsDefault:  name == defaultBranch,
		})
	}
	return branches, nil
}

func (e *CLIExecutor) listLocalBranches(ctx context.Context, repoPath string) ([]models.GitBranch, error) {
	res, err := e.run(ctx, repoPath, nil, "branch", "--format", "%(refname:short)")
	if err != nil {
		return nil, err
	}

	var branches []models.GitBranch
	for _, line := range strings.Split(res.stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, models.GitBranch{BranchName: line})
		}
	}
	return branches, nil
}

func (e *CLIExecutor) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	_, err := e.run(ctx, repoPath, nil, "branch", "-D", branch)
	return err
}

// ResetHard discards every local change on branch, staged or not
func (e *CLIExecutor) ResetHard(ctx context.Context, repoPath, branch string) error {
	if _, err := e.run(ctx, repoPath, nil, "checkout", branch); err != nil {
		return err
	}
	if _, err := e.run(ctx, repoPath, nil, "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	_, err := e.run(ctx, repoPath, nil, "clean", "-fd")
	return err
}

// Status reports the working tree state of branch against its tracked remote
func (e *CLIExecutor) Status(ctx context.Context, repoPath, branch string) (*models.GitStatus, error) {
	res, err := e.run(ctx, repoPath, nil, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return nil, err
	}

	status := &models.GitStatus{}
	for _, line := range strings.Split(res.stdout, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			status.AheadCount, status.BehindCount = parseAheadBehind(line)
			continue
		}
		if len(line) < 4 {
			continue
		}
		code, path := line[:2], line[3:]
		switch {
		case code == "??" || strings.Contains(code, "A"):
			status.Added = append(status.Added, path)
		case code == "UU" || code == "AA" || code == "DD":
			status.Conflicting = append(status.Conflicting, path)
		case strings.Contains(code, "D"):
			status.Removed = append(status.Removed, path)
		default:
			status.Modified = append(status.Modified, path)
		}
	}
	status.IsClean = status.ModifiedCount() == 0 && len(status.Conflicting) == 0
	return status, nil
}

// parseAheadBehind extracts counts from a porcelain branch header like
// "## main...origin/main [ahead 2, behind 1]"
func parseAheadBehind(header string) (ahead, behind int) {
	open := strings.Index(header, "[")
	end := strings.Index(header, "]")
	if open < 0 || end < open {
		return 0, 0
	}
	for _, part := range strings.Split(header[open+1:end], ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		switch fields[0] {
		case "ahead":
			ahead = n
		case "behind":
			behind = n
		}
	}
	return ahead, behind
}

// CommitHistory returns the most recent commits on the current branch
func (e *CLIExecutor) CommitHistory(ctx context.Context, repoPath string) ([]models.GitCommitEntry, error) {
	res, err := e.run(ctx, repoPath, nil, "log",
		"--max-count", strconv.Itoa(historyLimit),
		"--pretty=format:%H%x1f%an%x1f%ae%x1f%s%x1f%aI%x1f%P")
	if err != nil {
		// A branch with no commits yet has no log.
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}

	var entries []models.GitCommitEntry
	for _, line := range strings.Split(res.stdout, "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 6 {
			continue
		}
		committedAt, _ := time.Parse(time.RFC3339, fields[4])
		entries = append(entries, models.GitCommitEntry{
			Hash:        fields[0],
			AuthorName:  fields[1],
			AuthorEmail: fields[2],
			Message:     fields[3],
			CommittedAt: committedAt,
			IsMerge:     len(strings.Fields(fields[5])) > 1,
		})
	}
	return entries, nil
}
