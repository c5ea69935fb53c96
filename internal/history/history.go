// Package history keeps a git repository per tenant holding every persisted
// version of the tenant's content plan.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"contentcal/api/internal/content"
)

const (
	planFile   = "plan.json"
	mainBranch = "main"
)

// ErrNoHistory is returned when a tenant has no snapshots yet.
var ErrNoHistory = errors.New("no plan history")

// Commit describes one snapshot.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Recorder struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Recorder {
	return &Recorder{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Snapshot commits plan as the tenant's latest version. An unchanged plan
// creates no commit and returns the current head.
func (r *Recorder) Snapshot(tenant content.Tenant, plan content.Plan, author, message string) (Commit, error) {
	if !tenant.Valid() {
		return Commit{}, fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}
	lock := r.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	repo, err := r.openOrInit(tenant)
	if err != nil {
		return Commit{}, err
	}

	payload, err := encodePlan(plan)
	if err != nil {
		return Commit{}, err
	}

	if head, err := headCommit(repo); err == nil {
		previous, readErr := readFile(head)
		if readErr == nil && bytes.Equal(previous, payload) {
			return toCommit(head), nil
		}
	} else if !errors.Is(err, ErrNoHistory) {
		return Commit{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), planFile), payload, 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", planFile, err)
	}
	if _, err := worktree.Add(planFile); err != nil {
		return Commit{}, fmt.Errorf("git add plan: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.contentcal.dev", sanitizeEmail(author)),
			When:  r.now(),
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit plan: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// Log lists snapshots newest first. limit <= 0 means all.
func (r *Recorder) Log(tenant content.Tenant, limit int) ([]Commit, error) {
	lock := r.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	repo, err := r.open(tenant)
	if errors.Is(err, ErrNoHistory) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := headCommit(repo)
	if errors.Is(err, ErrNoHistory) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	commits := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		commits = append(commits, toCommit(commitObj))
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return commits, nil
}

// PlanAt returns the plan stored by the snapshot with the given hash or
// unambiguous prefix.
func (r *Recorder) PlanAt(tenant content.Tenant, hash string) (content.Plan, error) {
	lock := r.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	repo, err := r.open(tenant)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	raw, err := readFile(commitObj)
	if err != nil {
		return nil, err
	}
	var plan content.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot %s: %v", content.ErrIntegrity, hash, err)
	}
	return plan, nil
}

func (r *Recorder) repoPath(tenant content.Tenant) string {
	return filepath.Join(r.baseDir, pathSegment(tenant.UserID), pathSegment(tenant.WebsiteID))
}

func (r *Recorder) open(tenant content.Tenant) (*git.Repository, error) {
	repo, err := git.PlainOpen(r.repoPath(tenant))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (r *Recorder) openOrInit(tenant content.Tenant) (*git.Repository, error) {
	repo, err := r.open(tenant)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}

	path := r.repoPath(tenant)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (r *Recorder) tenantLock(tenant content.Tenant) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.locks[tenant.Key()]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	r.locks[tenant.Key()] = lock
	return lock
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func readFile(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(planFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", planFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open plan reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func encodePlan(plan content.Plan) ([]byte, error) {
	if plan == nil {
		plan = content.Plan{}
	}
	payload, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return append(payload, '\n'), nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: resolve hash %s: %v", ErrNoHistory, hash, err)
	}
	return *resolved, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

// pathSegment keeps ids from escaping the base directory.
func pathSegment(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out = append(out, r)
			continue
		}
		out = append(out, '_')
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
