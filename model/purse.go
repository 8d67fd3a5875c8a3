package model

// Purse is the escrow ledger for a paid competition: the fixed entry fee,
// the accounted reserve, the custodial pool address, and the per-user
// claimed flags.
//
// Reserve is principal accounting only.  It grows on registration and
// shrinks on refund; claims redistribute the pool and leave Reserve alone.
type Purse struct {
	Fee     int64
	Reserve int64
	Pool    Address
	// Claimed holds one entry per registered user; the value is whether
	// they have already claimed their reward.
	Claimed map[Address]bool
}

func NewPurse(fee int64, pool Address) *Purse {
	return &Purse{
		Fee:     fee,
		Pool:    pool,
		Claimed: make(map[Address]bool),
	}
}

// Registered reports whether the user has paid in (and not been refunded).
func (p *Purse) Registered(user Address) bool {
	_, ok := p.Claimed[user]
	return ok
}

func (p *Purse) Clone() *Purse {
	cpy := *p
	cpy.Claimed = make(map[Address]bool, len(p.Claimed))
	for user, claimed := range p.Claimed {
		cpy.Claimed[user] = claimed
	}
	return &cpy
}
