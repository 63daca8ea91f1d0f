// Package testutil holds shared in-memory fakes for the versioned blob
// store, the generative provider, and the notification sink.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"courier/internal/githubstore"
)

// FakeStore is an in-memory versioned blob store. Versions are sequence
// numbers per path; a write must present the path's current version (or ""
// to create), mirroring the optimistic-concurrency contract of the real
// store.
type FakeStore struct {
	mu       sync.Mutex
	blobs    map[string]blob // key "repo\x00path"
	repo     string
	seq      int
	Repos    []string
	Searched []string

	// FailWrite / FailRead map keys to errors to inject per-path failures.
	FailWrite map[string]error
	FailRead  map[string]error
}

type blob struct {
	content string
	version githubstore.Version
}

func NewFakeStore(defaultRepo string) *FakeStore {
	return &FakeStore{
		blobs:     map[string]blob{},
		repo:      defaultRepo,
		FailWrite: map[string]error{},
		FailRead:  map[string]error{},
	}
}

func (s *FakeStore) key(repo, path string) string { return repo + "\x00" + path }

// Seed installs content for a path in the default repo and returns its
// version.
func (s *FakeStore) Seed(path, content string) githubstore.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	v := githubstore.Version(fmt.Sprintf("v%d", s.seq))
	s.blobs[s.key(s.repo, path)] = blob{content: content, version: v}
	return v
}

// Content returns the current content for a path in the default repo.
func (s *FakeStore) Content(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[s.key(s.repo, path)].content
}

func (s *FakeStore) Read(ctx context.Context, path string) (githubstore.Handle, error) {
	return s.ReadIn(ctx, s.repo, path)
}

func (s *FakeStore) ReadIn(_ context.Context, repo, path string) (githubstore.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailRead[path]; err != nil {
		return githubstore.Handle{}, err
	}
	b, ok := s.blobs[s.key(repo, path)]
	if !ok {
		return githubstore.Handle{}, githubstore.ErrNotFound
	}
	return githubstore.Handle{Content: b.content, Version: b.version}, nil
}

func (s *FakeStore) Write(ctx context.Context, path, content, message string, expected githubstore.Version) (githubstore.Version, error) {
	return s.WriteIn(ctx, s.repo, path, content, message, expected)
}

func (s *FakeStore) WriteIn(_ context.Context, repo, path, content, _ string, expected githubstore.Version) (githubstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailWrite[path]; err != nil {
		return "", err
	}
	k := s.key(repo, path)
	current, exists := s.blobs[k]
	if exists && current.version != expected {
		return "", githubstore.ErrVersionConflict
	}
	if !exists && expected != "" {
		return "", githubstore.ErrVersionConflict
	}
	s.seq++
	v := githubstore.Version(fmt.Sprintf("v%d", s.seq))
	s.blobs[k] = blob{content: content, version: v}
	return v, nil
}

func (s *FakeStore) ListRepos(context.Context) ([]string, error) {
	return s.Repos, nil
}

func (s *FakeStore) Search(_ context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Searched = append(s.Searched, query)
	return s.Repos, nil
}
