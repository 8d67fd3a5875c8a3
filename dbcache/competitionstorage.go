// Package dbcache puts a read-through LRU in front of competition storage.
package dbcache

import (
	"context"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/state"
	"github.com/ts4z/knockout/varz"
)

var (
	cacheHits            = varz.NewInt("cacheHits")
	cacheMisses          = varz.NewInt("cacheMisses")
	cacheDuplicateUpdate = varz.NewInt("cacheDuplicateUpdate")
)

type CompetitionStorage struct {
	cache *lru.Cache[string, *model.Competition]
	lock  sync.Mutex
	next  state.CompetitionStorage
}

var _ state.CompetitionStorage = (*CompetitionStorage)(nil)

func NewCompetitionStorage(size int, next state.CompetitionStorage) *CompetitionStorage {
	cache, err := lru.New[string, *model.Competition](size)
	if err != nil {
		log.Fatalf("can't create competition cache: %v", err)
	}
	return &CompetitionStorage{
		cache: cache,
		next:  next,
	}
}

func (s *CompetitionStorage) Close() {
	s.next.Close()
}

func (s *CompetitionStorage) CreateCompetition(ctx context.Context, c *model.Competition) error {
	err := s.next.CreateCompetition(ctx, c)
	if err != nil {
		return err
	}
	s.cacheStore(c)
	return nil
}

func (s *CompetitionStorage) FetchCompetition(ctx context.Context, owner model.Address, id string) (*model.Competition, error) {
	key := model.Key(owner, id)

	s.lock.Lock()
	cached, ok := s.cache.Get(key)
	s.lock.Unlock()
	if ok {
		cacheHits.Add(1)
		return cached.Clone(), nil
	}

	cacheMisses.Add(1)
	c, err := s.next.FetchCompetition(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	s.cacheStore(c)
	return c, nil
}

func (s *CompetitionStorage) SaveCompetition(ctx context.Context, c *model.Competition) error {
	err := s.next.SaveCompetition(ctx, c)
	if err != nil {
		return err
	}
	s.cacheStore(c)
	return nil
}

func (s *CompetitionStorage) DeleteCompetition(ctx context.Context, owner model.Address, id string) error {
	err := s.next.DeleteCompetition(ctx, owner, id)
	if err == nil {
		s.lock.Lock()
		s.cache.Remove(model.Key(owner, id))
		s.lock.Unlock()
	}
	return err
}

func (s *CompetitionStorage) FetchOverview(ctx context.Context, owner model.Address) ([]model.CompetitionSlug, error) {
	return s.next.FetchOverview(ctx, owner)
}

// CacheInvalidate drops the cached copy if it is no newer than version.
// Suitable for wiring to an external change feed.
func (s *CompetitionStorage) CacheInvalidate(_ context.Context, owner model.Address, id string, version int64) {
	key := model.Key(owner, id)
	s.lock.Lock()
	defer s.lock.Unlock()
	if c, ok := s.cache.Get(key); ok {
		if c.Version <= version {
			s.cache.Remove(key)
		}
	}
}

// cacheStore keeps the newest version it has seen.  The cache owns its copy;
// callers keep theirs.
func (s *CompetitionStorage) cacheStore(c *model.Competition) {
	key := c.Key()
	s.lock.Lock()
	defer s.lock.Unlock()
	if cached, ok := s.cache.Get(key); ok {
		if cached.Version > c.Version {
			log.Printf("cache: have version %d of %s, incoming %d, ignoring", cached.Version, key, c.Version)
			return
		} else if cached.Version == c.Version {
			cacheDuplicateUpdate.Add(1)
			return
		}
	}
	s.cache.Add(key, c.Clone())
}
