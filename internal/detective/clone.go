package detective

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultCloneTimeout bounds one git clone.
const DefaultCloneTimeout = 5 * time.Minute

var remoteRepo = regexp.MustCompile(`^(?:https?://|ssh://|git://|git@[\w.-]+:)`)

// IsRemote reports whether repo is a git URL rather than a local path.
func IsRemote(repo string) bool {
	return remoteRepo.MatchString(repo)
}

// Cloner checks remote repositories out into temporary directories so the
// detectives can read them like a local checkout.
type Cloner struct {
	Git     GitFunc
	Timeout time.Duration
	// Dir is the parent of the temporary checkouts; empty means os.TempDir.
	Dir string
}

// NewCloner returns a cloner that shells out to the git binary.
func NewCloner() *Cloner {
	return &Cloner{Git: runGit, Timeout: DefaultCloneTimeout}
}

// Checkout returns a local directory for repo. Local paths come back
// unchanged with a no-op cleanup. Remote URLs are cloned into a fresh
// temporary directory, which cleanup removes; nothing is left behind when
// the clone fails.
func (c *Cloner) Checkout(ctx context.Context, repo string) (string, func(), error) {
	if !IsRemote(repo) {
		return repo, func() {}, nil
	}
	dir, err := os.MkdirTemp(c.Dir, "auditor-clone-*")
	if err != nil {
		return "", nil, fmt.Errorf("clone %s: %w", repo, err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	git := c.Git
	if git == nil {
		git = runGit
	}
	if _, err := git(cctx, dir, "clone", "--quiet", "--", repo, dir); err != nil {
		cleanup()
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", nil, fmt.Errorf("%w: %s after %s", ErrCloneTimeout, repo, timeout)
		}
		return "", nil, fmt.Errorf("clone %s: %w", repo, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("clone %s: checkout has no .git directory", repo)
	}
	return dir, cleanup, nil
}
