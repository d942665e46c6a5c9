// Package backup keeps git snapshots of the published content tree so the
// whole site can be inspected or restored outside the database.
package backup

import (
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

// CommitInfo describes one snapshot commit.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// SnapshotParagraph is one content block inside a page snapshot.
type SnapshotParagraph struct {
	Type     string
	Content  string
	Caption  string
	MediaURL string
}

// SnapshotPage is one page inside a chapter snapshot.
type SnapshotPage struct {
	ID         string
	Title      string
	Body       string
	Paragraphs []SnapshotParagraph
}

// SnapshotChapter is one chapter of the content tree.
type SnapshotChapter struct {
	ID      string
	Title   string
	Summary string
	Pages   []SnapshotPage
}

// Service writes snapshots into a single git repository under baseDir.
type Service struct {
	baseDir string
	mu      sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{baseDir: baseDir}
}

// Snapshot writes the content tree as markdown files and commits the
// result. Files for removed chapters and pages are deleted from the
// worktree so the repo always mirrors the current tree.
func (s *Service) Snapshot(chapters []SnapshotChapter, author, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensureRepo(author)
	if err != nil {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	contentDir := filepath.Join(root, "chapters")
	if err := os.RemoveAll(contentDir); err != nil {
		return CommitInfo{}, fmt.Errorf("clear content dir: %w", err)
	}

	for ci, chapter := range chapters {
		chapterDir := filepath.Join(contentDir, fmt.Sprintf("%02d-%s", ci+1, chapter.ID))
		if err := os.MkdirAll(chapterDir, 0o755); err != nil {
			return CommitInfo{}, fmt.Errorf("create chapter dir: %w", err)
		}

		index := chapterMarkdown(chapter)
		if err := os.WriteFile(filepath.Join(chapterDir, "_chapter.md"), []byte(index), 0o644); err != nil {
			return CommitInfo{}, fmt.Errorf("write chapter index: %w", err)
		}

		for pi, page := range chapter.Pages {
			name := fmt.Sprintf("%02d-%s.md", pi+1, page.ID)
			if err := os.WriteFile(filepath.Join(chapterDir, name), []byte(pageMarkdown(page)), 0o644); err != nil {
				return CommitInfo{}, fmt.Errorf("write page file: %w", err)
			}
		}
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return CommitInfo{}, fmt.Errorf("stage snapshot: %w", err)
	}

	if message == "" {
		message = "Content snapshot"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            signature(author),
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists snapshot commits, newest first.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.baseDir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []CommitInfo{}, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return []CommitInfo{}, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) ensureRepo(author string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.baseDir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.baseDir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	readme := "# Folio content snapshots\n\nEach commit is one full snapshot of the published content tree.\n"
	if err := os.WriteFile(filepath.Join(s.baseDir, "README.md"), []byte(readme), 0o644); err != nil {
		return nil, fmt.Errorf("write readme: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return nil, fmt.Errorf("git add readme: %w", err)
	}
	hash, err := worktree.Commit("Initialize snapshot repository", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return nil, fmt.Errorf("commit readme: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return nil, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func chapterMarkdown(chapter SnapshotChapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", chapter.Title)
	if chapter.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", chapter.Summary)
	}
	return b.String()
}

func pageMarkdown(page SnapshotPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", page.Title)
	if page.Body != "" {
		fmt.Fprintf(&b, "%s\n", page.Body)
	}
	for _, p := range page.Paragraphs {
		b.WriteString("\n")
		switch p.Type {
		case "image":
			fmt.Fprintf(&b, "![%s](%s)\n", p.Caption, p.MediaURL)
		case "quote":
			for _, line := range strings.Split(p.Content, "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
		default:
			fmt.Fprintf(&b, "%s\n", p.Content)
		}
	}
	return b.String()
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "Folio"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.folio.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}
