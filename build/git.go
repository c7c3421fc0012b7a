package build

// This file contains the Git integration used to fetch the source of a
// build.

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"strings"

	"github.com/hwci/hwci/model"
	"github.com/rs/zerolog"
)

// Cloner fetches a repository at a branch and commit into dest and returns
// the checked out commit hash.
type Cloner interface {
	Clone(ctx context.Context, url, branch, commitRef, dest string) (string, error)
}

// GitCloner clones with the git binary.
type GitCloner struct {
	logger zerolog.Logger
	binary string
}

// NewGitCloner creates a cloner which runs git from PATH.
func NewGitCloner(logger zerolog.Logger) *GitCloner {
	return &GitCloner{logger: logger, binary: "git"}
}

func (g *GitCloner) Clone(ctx context.Context, url, branch, commitRef, dest string) (string, error) {
	if _, err := g.git(ctx, "", "clone", "--single-branch", "--branch", branch, url, dest); err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", url, err)
	}

	if commitRef != "" && commitRef != model.HeadCommit {
		if _, err := g.git(ctx, dest, "checkout", commitRef); err != nil {
			return "", fmt.Errorf("failed to checkout %s: %w", commitRef, err)
		}
	}

	output, err := g.git(ctx, dest, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get git commit: %w", err)
	}
	commit := strings.TrimSpace(output)

	g.logger.Info().Str("url", url).Str("branch", branch).Str("commit", commit).Msg("Cloned repository")
	return commit, nil
}

func (g *GitCloner) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug().Strs("args", args).Str("dir", dir).Msg("Running git")
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// RepositoryName derives a short name from a clone URL.
func RepositoryName(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, ":"); i >= 0 && !strings.Contains(url, "://") {
		url = url[i+1:]
	}
	name := strings.TrimSuffix(path.Base(url), ".git")
	if name == "" || name == "." || name == "/" {
		return "repository"
	}
	return name
}
