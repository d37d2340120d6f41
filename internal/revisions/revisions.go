// Package revisions keeps the content history of each campaign in its own
// git repository.
package revisions

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.json"

var ErrRevisionNotFound = errors.New("revision not found")

type Revision struct {
	Hash      string    `json:"hash"`
	ShortHash string    `json:"shortHash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Author struct {
	Name  string
	Email string
}

type Service struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records content as the newest revision of the campaign, creating
// the repository on first use. Content identical to the head revision is
// not committed again; the head revision is returned instead.
func (s *Service) Commit(campaignID string, content json.RawMessage, author Author, message string) (Revision, error) {
	if !validID(campaignID) {
		return Revision{}, fmt.Errorf("invalid campaign id %q", campaignID)
	}
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(campaignID)
	if err != nil {
		return Revision{}, err
	}

	payload, err := indent(content)
	if err != nil {
		return Revision{}, err
	}

	if head, err := repo.Head(); err == nil {
		headCommit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Revision{}, fmt.Errorf("load head commit: %w", err)
		}
		current, err := readContent(headCommit)
		if err != nil {
			return Revision{}, err
		}
		if sameJSON(current, payload) {
			return toRevision(headCommit), nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Revision{}, fmt.Errorf("resolve head: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.repoPath(campaignID), contentFile), payload, 0o644); err != nil {
		return Revision{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Revision{}, fmt.Errorf("git add content: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		message = "Save campaign content"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName(author),
			Email: authorEmail(author),
			When:  s.now(),
		},
	})
	if err != nil {
		return Revision{}, fmt.Errorf("commit content: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// History lists revisions newest first. A campaign without a repository has
// no history.
func (s *Service) History(campaignID string, limit int) ([]Revision, error) {
	if !validID(campaignID) {
		return nil, fmt.Errorf("invalid campaign id %q", campaignID)
	}
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(campaignID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt returns the content stored at the given full or abbreviated hash.
func (s *Service) ContentAt(campaignID, hash string) (json.RawMessage, error) {
	if !validID(campaignID) || !validHash(hash) {
		return nil, ErrRevisionNotFound
	}
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(campaignID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	content, err := readContent(commitObj)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(content), nil
}

// Remove deletes the campaign repository.
func (s *Service) Remove(campaignID string) error {
	if !validID(campaignID) {
		return fmt.Errorf("invalid campaign id %q", campaignID)
	}
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(campaignID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	s.lockMu.Lock()
	delete(s.locks, campaignID)
	s.lockMu.Unlock()
	return nil
}

func (s *Service) openOrInit(campaignID string) (*git.Repository, error) {
	path := s.repoPath(campaignID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(campaignID string) string {
	return filepath.Join(s.baseDir, campaignID)
}

func (s *Service) campaignLock(campaignID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[campaignID] = lock
	}
	return lock
}

func readContent(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content bytes: %w", err)
	}
	return data, nil
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, ErrRevisionNotFound
	}
	return *resolved, nil
}

func toRevision(commitObj *object.Commit) Revision {
	hash := commitObj.Hash.String()
	return Revision{
		Hash:      hash,
		ShortHash: hash[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func indent(content json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		content = json.RawMessage(`[]`)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, content, "", "  "); err != nil {
		return nil, fmt.Errorf("format content: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func sameJSON(a, b []byte) bool {
	var left, right bytes.Buffer
	if json.Compact(&left, a) != nil || json.Compact(&right, b) != nil {
		return false
	}
	return bytes.Equal(left.Bytes(), right.Bytes())
}

func authorName(a Author) string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return "Launchkit"
}

func authorEmail(a Author) string {
	if strings.Contains(a.Email, "@") {
		return a.Email
	}
	return "builder@launchkit.local"
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}

func validHash(hash string) bool {
	if len(hash) < 4 || len(hash) > 40 {
		return false
	}
	_, err := hex.DecodeString(hash[:len(hash)&^1])
	return err == nil
}
