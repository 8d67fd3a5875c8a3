package fakes

import (
	"fmt"
	"sync"

	"github.com/ts4z/knockout/escrow"
	"github.com/ts4z/knockout/model"
)

// FakeBank is an in-memory TokenLedger.  Tests (and knockoutadmin's
// rehearsal mode) use Deposit to simulate a registrant paying their fee into
// the pool before calling Register.
type FakeBank struct {
	mu         sync.Mutex
	balances   map[model.Address]int64
	registered map[model.Address]bool
}

var _ escrow.TokenLedger = (*FakeBank)(nil)

func NewFakeBank() *FakeBank {
	return &FakeBank{
		balances:   make(map[model.Address]int64),
		registered: make(map[model.Address]bool),
	}
}

// Deposit credits an account out of thin air.
func (b *FakeBank) Deposit(account model.Address, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
}

func (b *FakeBank) BalanceOf(account model.Address) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

func (b *FakeBank) Transfer(from, to model.Address, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return fmt.Errorf("%s holds %d, can't transfer %d", from, b.balances[from], amount)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

func (b *FakeBank) RegisterDenomination(account model.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered[account] = true
	return nil
}

// DenominationRegistered reports whether RegisterDenomination was called for
// account.
func (b *FakeBank) DenominationRegistered(account model.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registered[account]
}
