package models

import (
	"time"

	"github.com/google/uuid"
)

// GitAuth is the deploy key pair authenticating the lineage to its remote.
// Only the lineage root holds this durably; branch records borrow it at use
// time and must never persist their own copy.
type GitAuth struct {
	PublicKey   string    `json:"publicKey"`
	PrivateKey  string    `json:"privateKey"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// IsPopulated reports whether both halves of the key pair are present
func (g *GitAuth) IsPopulated() bool {
	return g != nil && g.PublicKey != "" && g.PrivateKey != ""
}

// GitApplicationMetadata is the per-record version-control state. It is
// created on connect, mutated by every commit/push/pull/merge, and cleared on
// detach.
type GitApplicationMetadata struct {
	RepoName                  string    `json:"repoName"`
	RemoteURL                 string    `json:"remoteUrl"`
	BrowserSupportedRemoteURL string    `json:"browserSupportedRemoteUrl"`
	BranchName                string    `json:"branchName"`
	DefaultBranchName         string    `json:"defaultBranchName"`
	DefaultApplicationID      uuid.UUID `json:"defaultApplicationId"`
	IsRepoPrivate             bool      `json:"isRepoPrivate"`
	GitAuth                   *GitAuth  `json:"gitAuth,omitempty"`
	LastCommittedAt           time.Time `json:"lastCommittedAt,omitempty"`
}

// IsComplete reports whether the fields every branch operation depends on
// are populated.
func (m *GitApplicationMetadata) IsComplete() bool {
	return m != nil && m.BranchName != "" && m.DefaultApplicationID != uuid.Nil && m.RepoName != ""
}

// GitProfile is the author identity used to attribute commits, keyed per
// user either globally or per lineage.
type GitProfile struct {
	AuthorName       string `json:"authorName"`
	AuthorEmail      string `json:"authorEmail"`
	UseGlobalProfile bool   `json:"useGlobalProfile"`
}

// DefaultProfileKey is the profile key for a user's global git profile
const DefaultProfileKey = "default"

// GitStatus is a snapshot of a branch's working tree against its tracked
// remote.
type GitStatus struct {
	Added       []string `json:"added"`
	Modified    []string `json:"modified"`
	Removed     []string `json:"removed"`
	Conflicting []string `json:"conflicting"`
	IsClean     bool     `json:"isClean"`
	AheadCount  int      `json:"aheadCount"`
	BehindCount int      `json:"behindCount"`
}

// ModifiedCount returns the number of locally changed paths
func (s *GitStatus) ModifiedCount() int {
	return len(s.Added) + len(s.Modified) + len(s.Removed)
}

// MergeStatus is the outcome of a merge or a speculative merge probe
type MergeStatus struct {
	Status           string   `json:"status"`
	MergeAble        bool     `json:"mergeAble"`
	ConflictingFiles []string `json:"conflictingFiles,omitempty"`
}

// GitBranch is one branch as reported by the remote or the local tree
type GitBranch struct {
	BranchName string `json:"branchName"`
	IsDefault  bool   `json:"default"`
}

// GitPullResult carries the merge status plus the rehydrated application
// snapshot after a pull.
type GitPullResult struct {
	MergeStatus *MergeStatus `json:"mergeStatus"`
	Application *Application `json:"application"`
}

// GitCommitEntry is one commit in a branch's history
type GitCommitEntry struct {
	Hash        string    `json:"hash"`
	AuthorName  string    `json:"authorName"`
	AuthorEmail string    `json:"authorEmail"`
	Message     string    `json:"message"`
	CommittedAt time.Time `json:"committedAt"`
	IsMerge     bool      `json:"isMerge"`
}
