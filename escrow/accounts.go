package escrow

import (
	"github.com/google/uuid"

	"github.com/ts4z/knockout/model"
)

// poolNamespace seeds the custodial address derivation.  Changing it would
// orphan every existing pool, so don't.
var poolNamespace = uuid.MustParse("07d9f0a4-3c1b-4a26-9a2e-5b8f61e7c402")

// DerivedPools derives custodial pool addresses as name-based UUIDs over the
// competition key.  The same (owner, id) always lands on the same address,
// which is what lets a restarted process find its pools again.
type DerivedPools struct{}

var _ PoolAccounts = DerivedPools{}

func (DerivedPools) DeriveAccount(owner model.Address, id string) model.Address {
	u := uuid.NewSHA1(poolNamespace, []byte(model.Key(owner, id)))
	return model.Address("pool:" + u.String())
}
