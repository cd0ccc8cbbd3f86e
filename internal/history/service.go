// Package history keeps a git journal of step snapshots, one repository per
// project. Every accepted save commits the step's JSON file on the main
// history line, giving mentors a reviewable trail of how a plan evolved.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
}

type Service struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(root string) *Service {
	return &Service{root: root, locks: make(map[string]*sync.Mutex)}
}

// projectLock serializes commits per project; go-git worktrees are not safe
// for concurrent writes.
func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

func (s *Service) repoPath(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func stepFile(stepNumber int) string {
	return fmt.Sprintf("step-%02d.json", stepNumber)
}

func (s *Service) openOrInit(projectID string) (*git.Repository, error) {
	path := s.repoPath(projectID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open history repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init history repo: %w", err)
	}
	return repo, nil
}

// CommitStep writes the step snapshot and commits it. A save that changes
// nothing produces no commit and returns an empty hash.
func (s *Service) CommitStep(ctx context.Context, projectID string, stepNumber int, snapshot []byte, authorName, authorEmail, message string) (string, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(projectID)
	if err != nil {
		return "", err
	}
	name := stepFile(stepNumber)
	if err := os.WriteFile(filepath.Join(s.repoPath(projectID), name), snapshot, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if _, err := wt.Add(name); err != nil {
		return "", fmt.Errorf("stage snapshot: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return hash.String(), nil
}

// StepHistory lists commits touching one step's snapshot, newest first.
func (s *Service) StepHistory(ctx context.Context, projectID string, stepNumber, limit int) ([]CommitInfo, error) {
	repo, err := git.PlainOpen(s.repoPath(projectID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history repo: %w", err)
	}

	name := stepFile(stepNumber)
	iter, err := repo.Log(&git.LogOptions{FileName: &name})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var out []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, CommitInfo{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
		})
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return out, nil
}

var errStopIteration = errors.New("stop iteration")

// StepSnapshot reads the snapshot content at a given commit.
func (s *Service) StepSnapshot(ctx context.Context, projectID string, stepNumber int, hash string) ([]byte, error) {
	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("open history repo: %w", err)
	}
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve commit: %w", err)
	}
	file, err := commit.File(stepFile(stepNumber))
	if err != nil {
		return nil, fmt.Errorf("read snapshot at commit: %w", err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read snapshot content: %w", err)
	}
	return []byte(content), nil
}
