// Package registry is the front door: it maps (owner, competition id) to a
// stored competition, checks who is calling, and routes each operation to
// the variant that supports it.
//
// It also provides the serialization the core assumes.  Every operation on a
// competition runs under that competition's lock, as one
// fetch-mutate-save; a failed precondition aborts before the save, so
// storage never sees a partial apply.  Operations on different competitions
// don't contend.
package registry

import (
	"context"
	"sync"

	"github.com/ts4z/knockout/bracket"
	"github.com/ts4z/knockout/dep"
	"github.com/ts4z/knockout/escrow"
	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/predict"
	"github.com/ts4z/knockout/state"
	"github.com/ts4z/knockout/ts"
)

// Options wires a Director.  Storage and Clock are required.  Bank and Pools
// are only needed if paid competitions will exist; leave them nil otherwise.
// A nil Sink discards events.
type Options struct {
	Storage state.CompetitionStorage
	Clock   *ts.Clock
	Bank    escrow.TokenLedger
	Pools   escrow.PoolAccounts
	Sink    gossip.Sink

	// DefaultPointsPerRound applies to competitions created without an
	// explicit point budget.
	DefaultPointsPerRound int64
}

type Director struct {
	storage       state.CompetitionStorage
	clock         *ts.Clock
	brackets      *bracket.Mutator
	predictions   *predict.Ledger
	purses        *escrow.Manager // nil when no bank is wired
	defaultPoints int64

	locks keyedLocks
}

func New(opts Options) *Director {
	storage := dep.Required(opts.Storage)
	clock := dep.Required(opts.Clock)
	sink := opts.Sink
	if sink == nil {
		sink = gossip.Discard
	}

	d := &Director{
		storage:       storage,
		clock:         clock,
		brackets:      bracket.NewMutator(clock, sink),
		predictions:   predict.NewLedger(sink),
		defaultPoints: opts.DefaultPointsPerRound,
	}
	if opts.Bank != nil && opts.Pools != nil {
		d.purses = escrow.NewManager(clock, opts.Bank, opts.Pools, d.predictions, sink)
	}
	return d
}

// CreateParams is bracket.CreateParams plus the entry fee for the paid
// variant.  Owner is taken from the caller, not from here.
type CreateParams struct {
	bracket.CreateParams
	Fee int64
}

// CreateCompetition creates and persists a new competition owned by caller.
func (d *Director) CreateCompetition(ctx context.Context, caller model.Address, p CreateParams) error {
	p.Owner = caller
	if p.PointsPerRound == 0 {
		p.PointsPerRound = d.defaultPoints
	}
	c, err := d.brackets.Create(p.CreateParams)
	if err != nil {
		return err
	}
	if p.Variant == model.VariantPaidPredictable {
		if d.purses == nil {
			return kerr.Newf(kerr.KindConfig, "no token ledger wired, can't create a paid competition")
		}
		if err := d.purses.Initialize(c, p.Fee); err != nil {
			return err
		}
	}

	unlock := d.locks.lock(c.Key())
	defer unlock()
	return d.storage.CreateCompetition(ctx, c)
}

// Owner-only mutations.

func (d *Director) Start(ctx context.Context, caller, owner model.Address, id string) error {
	return d.mutateAsOwner(ctx, caller, owner, id, func(c *model.Competition) error {
		return d.brackets.Start(c)
	})
}

func (d *Director) SetTeamNames(ctx context.Context, caller, owner model.Address, id string, names []string) error {
	return d.mutateAsOwner(ctx, caller, owner, id, func(c *model.Competition) error {
		return d.brackets.SetTeamNames(c, names)
	})
}

func (d *Director) CompleteMatch(ctx context.Context, caller, owner model.Address, id string, match, winner int) error {
	return d.mutateAsOwner(ctx, caller, owner, id, func(c *model.Competition) error {
		return d.brackets.CompleteMatch(c, match, winner)
	})
}

func (d *Director) AdvanceRound(ctx context.Context, caller, owner model.Address, id string) error {
	return d.mutateAsOwner(ctx, caller, owner, id, func(c *model.Competition) error {
		return d.brackets.AdvanceRound(c)
	})
}

func (d *Director) AdvanceRoundWithResults(ctx context.Context, caller, owner model.Address, id string, results []int) error {
	return d.mutateAsOwner(ctx, caller, owner, id, func(c *model.Competition) error {
		return d.brackets.AdvanceRoundWithResults(c, results)
	})
}

// Caller-as-participant mutations.

// SubmitPrediction records caller's predicted bracket.  On a paid
// competition that means registering: the fee must already sit in the pool.
func (d *Director) SubmitPrediction(ctx context.Context, caller, owner model.Address, id string, picks []int) error {
	return d.mutate(ctx, owner, id, func(c *model.Competition) error {
		switch c.Variant {
		case model.VariantPredictable:
			return d.predictions.Submit(c, caller, picks)
		case model.VariantPaidPredictable:
			if d.purses == nil {
				return kerr.Newf(kerr.KindConfig, "no token ledger wired")
			}
			return d.purses.Register(c, caller, picks)
		default:
			return kerr.Validation(kerr.ErrWrongVariant)
		}
	})
}

func (d *Director) Refund(ctx context.Context, caller, owner model.Address, id string) error {
	return d.mutate(ctx, owner, id, func(c *model.Competition) error {
		if d.purses == nil {
			return kerr.Newf(kerr.KindConfig, "no token ledger wired")
		}
		return d.purses.Refund(c, caller)
	})
}

func (d *Director) Claim(ctx context.Context, caller, owner model.Address, id string) error {
	return d.mutate(ctx, owner, id, func(c *model.Competition) error {
		if d.purses == nil {
			return kerr.Newf(kerr.KindConfig, "no token ledger wired")
		}
		return d.purses.Claim(c, caller)
	})
}

// Reads.

func (d *Director) Competition(ctx context.Context, owner model.Address, id string) (*model.Competition, error) {
	unlock := d.locks.lock(model.Key(owner, id))
	defer unlock()
	return d.storage.FetchCompetition(ctx, owner, id)
}

func (d *Director) Overview(ctx context.Context, owner model.Address) ([]model.CompetitionSlug, error) {
	return d.storage.FetchOverview(ctx, owner)
}

func (d *Director) Score(ctx context.Context, owner model.Address, id string, user model.Address) (int64, error) {
	c, err := d.predictable(ctx, owner, id)
	if err != nil {
		return 0, err
	}
	return d.predictions.Score(c, c.Predictions, user), nil
}

func (d *Director) TotalScore(ctx context.Context, owner model.Address, id string) (int64, error) {
	c, err := d.predictable(ctx, owner, id)
	if err != nil {
		return 0, err
	}
	return d.predictions.TotalScore(c, c.Predictions), nil
}

func (d *Director) ScorePercent(ctx context.Context, owner model.Address, id string, user model.Address) (int64, error) {
	c, err := d.predictable(ctx, owner, id)
	if err != nil {
		return 0, err
	}
	return d.predictions.ScorePercent(c, c.Predictions, user), nil
}

func (d *Director) PendingRewards(ctx context.Context, owner model.Address, id string, user model.Address) (int64, error) {
	c, err := d.Competition(ctx, owner, id)
	if err != nil {
		return 0, err
	}
	if c.Variant != model.VariantPaidPredictable || d.purses == nil {
		return 0, kerr.Validation(kerr.ErrWrongVariant)
	}
	return d.purses.PendingRewards(c, user), nil
}

func (d *Director) predictable(ctx context.Context, owner model.Address, id string) (*model.Competition, error) {
	c, err := d.Competition(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !c.Variant.Predictable() {
		return nil, kerr.Validation(kerr.ErrWrongVariant)
	}
	return c, nil
}

func (d *Director) mutate(ctx context.Context, owner model.Address, id string, fn func(*model.Competition) error) error {
	unlock := d.locks.lock(model.Key(owner, id))
	defer unlock()

	c, err := d.storage.FetchCompetition(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return d.storage.SaveCompetition(ctx, c)
}

func (d *Director) mutateAsOwner(ctx context.Context, caller, owner model.Address, id string, fn func(*model.Competition) error) error {
	if caller != owner {
		return kerr.Validation(kerr.ErrNotOwner)
	}
	return d.mutate(ctx, owner, id, fn)
}

// keyedLocks hands out one mutex per competition.  Entries are never
// reaped; competitions are never deleted in normal operation and the
// per-entry cost is a mutex.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
