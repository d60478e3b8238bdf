package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackwell-systems/reelshelf/internal/github"
)

// GitHubStore keeps objects as files of one repository branch, using blob
// shas as versions.
type GitHubStore struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHubStore creates a store over owner/repo. An empty branch means the
// repository's default branch.
func NewGitHubStore(gh *github.Client, owner, repo, branch string) *GitHubStore {
	return &GitHubStore{gh: gh, owner: owner, repo: repo, branch: branch}
}

// Get implements Store.
func (s *GitHubStore) Get(ctx context.Context, p string) (Object, error) {
	data, sha, err := s.gh.GetFileContent(ctx, s.owner, s.repo, Clean(p), s.branch)
	if err != nil {
		return Object{}, translate(p, err)
	}
	return Object{Data: data, Version: Version(sha)}, nil
}

// Put implements Store.
func (s *GitHubStore) Put(ctx context.Context, p string, data []byte, expect Version, message string) (PutResult, error) {
	res, err := s.gh.PutFileContent(ctx, s.owner, s.repo, Clean(p), github.FileUpdate{
		Message: message,
		Content: data,
		SHA:     string(expect),
		Branch:  s.branch,
	})
	if err != nil {
		return PutResult{}, translate(p, err)
	}
	return PutResult{
		Version:   Version(res.Content.SHA),
		URL:       res.Content.HTMLURL,
		CommitURL: res.Commit.HTMLURL,
	}, nil
}

// List implements Store.
func (s *GitHubStore) List(ctx context.Context, dir string) ([]Entry, error) {
	entries, err := s.gh.ListDirectory(ctx, s.owner, s.repo, Clean(dir), s.branch)
	if err != nil {
		return nil, translate(dir, err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{
			Name:    e.Name,
			Path:    e.Path,
			IsDir:   e.Type == "dir",
			Version: Version(e.SHA),
		})
	}
	return out, nil
}

// Ping verifies the repository is reachable with the configured token.
func (s *GitHubStore) Ping(ctx context.Context) error {
	ok, err := s.gh.RepoExists(ctx, s.owner, s.repo)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("repository %s/%s: %w", s.owner, s.repo, ErrNotFound)
	}
	return nil
}

func translate(p string, err error) error {
	switch {
	case errors.Is(err, github.ErrNotFound):
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	case errors.Is(err, github.ErrConflict):
		return fmt.Errorf("%s: %w", p, ErrConflict)
	}
	return err
}
