package state

// package state manages persistence.

import (
	"context"

	"github.com/ts4z/knockout/model"
)

type Closer interface {
	Close()
}

// CompetitionStorage is the key-value store the core runs against, keyed by
// (owner, competition id).  Implementations hand out deep copies; a caller's
// mutations are invisible until Save.
//
// Save enforces the optimistic lock: it only applies if the stored Version
// matches the Version the caller fetched, and bumps it.  Under the
// registry's per-competition serialization the lock never fires; it is a
// backstop against a second writer outside the registry.
type CompetitionStorage interface {
	Closer

	CreateCompetition(ctx context.Context, c *model.Competition) error
	FetchCompetition(ctx context.Context, owner model.Address, id string) (*model.Competition, error)
	SaveCompetition(ctx context.Context, c *model.Competition) error
	DeleteCompetition(ctx context.Context, owner model.Address, id string) error

	FetchOverview(ctx context.Context, owner model.Address) ([]model.CompetitionSlug, error)
}
