// Package escrow runs the paid side of a prediction competition: a fixed
// entry fee per registrant held in a custodial pool, and a pro-rata payout
// of that pool against prediction accuracy once the bracket completes.
//
// The money itself never moves through this package.  A TokenLedger
// collaborator observes balances and executes transfers; escrow does the
// bookkeeping and enforces the one-claim-per-user guarantee.
package escrow

import (
	"fmt"
	"time"

	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/predict"
	"github.com/ts4z/knockout/varz"
)

var (
	feesCollected = varz.NewInt("feesCollected")
	feesRefunded  = varz.NewInt("feesRefunded")
	rewardsPaid   = varz.NewInt("rewardsPaid")
)

// TokenLedger moves value between accounts.  The real thing lives outside
// this repository; tests use fakes.FakeBank.
type TokenLedger interface {
	// BalanceOf reports the pool denomination balance of an account.
	BalanceOf(account model.Address) int64
	// Transfer moves amount from a custodial account this manager
	// controls to any account.
	Transfer(from, to model.Address, amount int64) error
	// RegisterDenomination prepares an account to receive the fee
	// denomination.
	RegisterDenomination(account model.Address) error
}

// PoolAccounts derives the custodial pool address for a competition.  The
// derivation must be deterministic in (owner, id).
type PoolAccounts interface {
	DeriveAccount(owner model.Address, id string) model.Address
}

// Predictions is the slice of the prediction ledger the escrow manager
// needs: record a registrant's picks, and turn a user into a basis-point
// share.  *predict.Ledger implements this.
type Predictions interface {
	Submit(c *model.Competition, user model.Address, picks []int) error
	ScorePercent(b predict.Bracket, book *model.PredictionBook, user model.Address) int64
}

// Clock gets the current time.  clockwork.Clock implements this.
type Clock interface {
	Now() time.Time
}

type Manager struct {
	clock       Clock
	bank        TokenLedger
	pools       PoolAccounts
	predictions Predictions
	sink        gossip.Sink
}

func NewManager(clock Clock, bank TokenLedger, pools PoolAccounts, predictions Predictions, sink gossip.Sink) *Manager {
	return &Manager{
		clock:       clock,
		bank:        bank,
		pools:       pools,
		predictions: predictions,
		sink:        sink,
	}
}

// Initialize attaches a purse to a freshly created competition: zero
// reserve, a derived custodial pool account, and the fee denomination
// registered on it so the pool can receive transfers.
func (m *Manager) Initialize(c *model.Competition, fee int64) error {
	if c.Purse != nil {
		return kerr.Validationf("competition %s already has a purse", c.ID)
	}
	pool := m.pools.DeriveAccount(c.Owner, c.ID)
	if err := m.bank.RegisterDenomination(pool); err != nil {
		return fmt.Errorf("registering denomination on pool %s: %w", pool, err)
	}
	c.Purse = model.NewPurse(fee, pool)
	return nil
}

// Register records a paying registrant and their prediction.  The caller has
// already transferred the fee to the pool; Register verifies the pool
// balance reflects exactly one new fee (or, for a resubmission, no new value
// at all) before crediting the reserve.  Anything else is someone paying the
// wrong amount, and the whole operation fails.
func (m *Manager) Register(c *model.Competition, user model.Address, picks []int) error {
	if c.Purse == nil {
		return kerr.Validation(kerr.ErrWrongVariant)
	}
	if !c.NotStarted() {
		return kerr.Lifecycle(kerr.ErrAlreadyStarted)
	}
	if len(picks) != c.Teams()-1 {
		return kerr.Validationf("got %d predictions, want %d: %w",
			len(picks), c.Teams()-1, kerr.ErrBadPredictionCount)
	}

	p := c.Purse
	if p.Fee != 0 {
		observed := m.bank.BalanceOf(p.Pool)
		if p.Registered(user) {
			// Resubmission.  No new value may have arrived.
			if observed != p.Reserve {
				return kerr.Newf(kerr.KindEconomic, "pool holds %d, reserve is %d: %w",
					observed, p.Reserve, kerr.ErrWrongFeeAmount)
			}
		} else {
			if observed != p.Reserve+p.Fee {
				return kerr.Newf(kerr.KindEconomic, "pool holds %d, want %d: %w",
					observed, p.Reserve+p.Fee, kerr.ErrWrongFeeAmount)
			}
			p.Reserve += p.Fee
			feesCollected.Add(p.Fee)
			m.sink.Publish(gossip.Event{
				Type:   gossip.EventFeePaid,
				Owner:  c.Owner,
				ID:     c.ID,
				User:   user,
				Amount: p.Fee,
			})
		}
	}

	p.Claimed[user] = false
	return m.predictions.Submit(c, user, picks)
}

// Refund returns a registrant's fee.  Only reachable on a competition that
// expired without ever finishing; a live or completed bracket keeps its
// pool.
func (m *Manager) Refund(c *model.Competition, user model.Address) error {
	if c.Purse == nil {
		return kerr.Validation(kerr.ErrWrongVariant)
	}
	p := c.Purse
	if p.Fee == 0 {
		return kerr.Economic(kerr.ErrNoFeeConfigured)
	}
	if !c.Expired(m.clock.Now()) {
		return kerr.Lifecycle(kerr.ErrNotExpired)
	}
	if !p.Registered(user) {
		return kerr.Economic(kerr.ErrNotRegistered)
	}

	if err := m.bank.Transfer(p.Pool, user, p.Fee); err != nil {
		return fmt.Errorf("refunding %d to %s: %w", p.Fee, user, err)
	}
	delete(p.Claimed, user)
	p.Reserve -= p.Fee
	feesRefunded.Add(p.Fee)

	m.sink.Publish(gossip.Event{
		Type:   gossip.EventRefunded,
		Owner:  c.Owner,
		ID:     c.ID,
		User:   user,
		Amount: p.Fee,
	})
	return nil
}

// Claim pays out user's share of the pool, once.  The claimed flag is the
// real gate: it is asserted before the share is even computed, so a second
// claim fails no matter what the recomputed share would be.  Rewards
// redistribute the pool, they don't return principal, so the reserve stays
// put.
func (m *Manager) Claim(c *model.Competition, user model.Address) error {
	if c.Purse == nil {
		return kerr.Validation(kerr.ErrWrongVariant)
	}
	if !c.Finished() {
		return kerr.Lifecycle(kerr.ErrNotFinished)
	}
	p := c.Purse
	claimed, registered := p.Claimed[user]
	if !registered {
		return kerr.Economic(kerr.ErrNotRegistered)
	}
	if claimed {
		return kerr.Economic(kerr.ErrAlreadyClaimed)
	}

	pending := p.Reserve * m.predictions.ScorePercent(c, c.Predictions, user) / predict.BasisPoints
	if pending == 0 {
		return kerr.Economic(kerr.ErrNothingToClaim)
	}

	p.Claimed[user] = true
	if err := m.bank.Transfer(p.Pool, user, pending); err != nil {
		return fmt.Errorf("paying %d to %s: %w", pending, user, err)
	}
	rewardsPaid.Add(pending)

	m.sink.Publish(gossip.Event{
		Type:   gossip.EventClaimed,
		Owner:  c.Owner,
		ID:     c.ID,
		User:   user,
		Amount: pending,
	})
	return nil
}

// PendingRewards reports what Claim would pay user right now, without
// mutating anything.  0 for an unfinished competition, an unregistered user,
// or a reward already claimed.
func (m *Manager) PendingRewards(c *model.Competition, user model.Address) int64 {
	if c.Purse == nil || !c.Finished() {
		return 0
	}
	p := c.Purse
	claimed, registered := p.Claimed[user]
	if !registered || claimed {
		return 0
	}
	return p.Reserve * m.predictions.ScorePercent(c, c.Predictions, user) / predict.BasisPoints
}
