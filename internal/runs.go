package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	runsDirName = ".runs"

	DefaultBranch = "main"
	DefaultAuthor = "topiclens"
	DefaultEmail  = "topiclens@local"
)

type Run struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStore versions the artifacts of a store directory in a git
// repository. The git dir lives under <store>/.runs with the store
// itself as the worktree, so the artifacts stay plain files.
type RunStore struct {
	repo     *git.Repository
	worktree *git.Worktree
	dir      string
}

// OpenRunStore opens the run history for a store directory, creating
// it on first use.
func OpenRunStore(dir string) (*RunStore, error) {
	runsPath := filepath.Join(dir, runsDirName)
	if err := os.MkdirAll(runsPath, 0755); err != nil {
		return nil, fmt.Errorf("create runs directory: %w", err)
	}

	fs := osfs.New(runsPath)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	wt := osfs.New(dir)

	repo, err := git.Open(storage, wt)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.Init(storage, wt)
		if err == nil {
			if repoCfg, cfgErr := repo.Config(); cfgErr == nil {
				repoCfg.Init.DefaultBranch = DefaultBranch
				err = repo.SetConfig(repoCfg)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open runs repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	return &RunStore{
		repo:     repo,
		worktree: worktree,
		dir:      dir,
	}, nil
}

// CommitRun snapshots the current artifacts. Only known artifact files
// are staged, never the run history itself. Returns ErrNoChanges when
// the artifacts are identical to the last run.
func (s *RunStore) CommitRun(ctx context.Context, message string) (*Run, error) {
	for _, name := range artifactFilenames() {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			continue
		}
		if _, err := s.worktree.Add(name); err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
	}

	hash, err := s.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  DefaultAuthor,
			Email: DefaultEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil, ErrNoChanges
		}
		return nil, fmt.Errorf("commit run: %w", err)
	}

	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}

	return toRun(commit), nil
}

// Log lists runs, newest first. A limit of 0 returns all runs.
func (s *RunStore) Log(ctx context.Context, limit int) ([]*Run, error) {
	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var runs []*Run
	count := 0

	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && count >= limit {
			return io.EOF
		}
		runs = append(runs, toRun(c))
		count++
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	return runs, nil
}

// DiffSummaries renders the topic changes between the summaries
// committed at ref and the current store content.
func (s *RunStore) DiffSummaries(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}

	old, err := s.summariesAt(ref)
	if err != nil {
		return "", err
	}

	current := ""
	if data, readErr := os.ReadFile(filepath.Join(s.dir, summariesFilename)); readErr == nil {
		current = string(data)
	}

	if old == current {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(old, current, false)
	return dmp.DiffPrettyText(diffs), nil
}

func (s *RunStore) summariesAt(ref string) (string, error) {
	resolved, err := s.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolve ref: %w", err)
	}

	commit, err := s.repo.CommitObject(*resolved)
	if err != nil {
		return "", fmt.Errorf("get commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}

	f, err := tree.File(summariesFilename)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find summaries: %w", err)
	}

	return f.Contents()
}

func artifactFilenames() []string {
	return []string{
		manifestFilename,
		textsFilename,
		rawTextsFilename,
		summariesFilename,
		instructionFilename,
		labelsFilename,
		embeddingsFilename,
		projectionsFilename,
		indexFilename,
	}
}

func toRun(c *object.Commit) *Run {
	return &Run{
		Hash:      c.Hash.String(),
		Message:   strings.TrimSpace(c.Message),
		Timestamp: c.Author.When,
	}
}
