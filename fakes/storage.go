// Package fakes holds hand-written test doubles for the collaborators the
// core consumes: storage, the token ledger, and the notification sink.
// knockoutadmin also wires these in rehearsal mode.
package fakes

import (
	"context"
	"sync"

	"github.com/ts4z/knockout/ick"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/state"
)

// FakeStorage is an in-memory CompetitionStorage with the same copy and
// optimistic-lock discipline as the real one.
type FakeStorage struct {
	mu    sync.Mutex
	cache map[string]*model.Competition
}

var _ state.CompetitionStorage = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		cache: make(map[string]*model.Competition),
	}
}

func (s *FakeStorage) Close() {}

func (s *FakeStorage) CreateCompetition(_ context.Context, c *model.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.Key()
	if _, ok := s.cache[key]; ok {
		return kerr.Validationf("competition %s already exists", key)
	}
	c.Version = 0
	s.cache[key] = c.Clone()
	return nil
}

func (s *FakeStorage) FetchCompetition(_ context.Context, owner model.Address, id string) (*model.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[model.Key(owner, id)]
	if !ok {
		return nil, kerr.Lookupf("competition %s: %w", model.Key(owner, id), kerr.ErrUnknownCompetition)
	}
	return c.Clone(), nil
}

func (s *FakeStorage) SaveCompetition(_ context.Context, c *model.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.Key()
	stored, ok := s.cache[key]
	if !ok {
		return kerr.Lookupf("competition %s: %w", key, kerr.ErrUnknownCompetition)
	}
	if stored.Version != c.Version {
		return kerr.Validationf("optimistic lock failure on %s: stored %d, caller %d",
			key, stored.Version, c.Version)
	}
	c.Version++
	s.cache[key] = c.Clone()
	return nil
}

func (s *FakeStorage) DeleteCompetition(_ context.Context, owner model.Address, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, model.Key(owner, id))
	return nil
}

func (s *FakeStorage) FetchOverview(_ context.Context, owner model.Address) ([]model.CompetitionSlug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slugs []model.CompetitionSlug
	for _, key := range ick.SortedKeys(s.cache) {
		c := s.cache[key]
		if c.Owner != owner {
			continue
		}
		slugs = append(slugs, model.CompetitionSlug{
			Owner:   c.Owner,
			ID:      c.ID,
			Name:    c.Name,
			Variant: c.Variant,
		})
	}
	return slugs, nil
}
