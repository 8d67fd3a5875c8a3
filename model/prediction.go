package model

// PredictionBook holds every user's predicted bracket and the reverse index
// the scorer reads.  The two views must always agree: a user appears in the
// bucket for (match, team) exactly when their vector has team at that slot.
// All mutation funnels through Put so the invariant can't drift.
type PredictionBook struct {
	// Picks maps a user to their predicted winner per bracket slot.
	// Every vector has length NumTeams-1.
	Picks map[Address][]int
	// ByMatch maps match index to predicted winner to the set of users
	// who picked that winner for that match.
	ByMatch map[int]map[int]map[Address]bool
}

func NewPredictionBook() *PredictionBook {
	return &PredictionBook{
		Picks:   make(map[Address][]int),
		ByMatch: make(map[int]map[int]map[Address]bool),
	}
}

// Registered reports whether the user has ever submitted a prediction.
func (b *PredictionBook) Registered(user Address) bool {
	_, ok := b.Picks[user]
	return ok
}

// Predictors returns the set of users who picked team to win match.
// May be nil; callers only range over it or test membership.
func (b *PredictionBook) Predictors(match, team int) map[Address]bool {
	return b.ByMatch[match][team]
}

// Put records or replaces a user's prediction vector.  On replacement, only
// slots whose pick actually changed touch the reverse index; an identical
// resubmission leaves the book exactly as it was.  The caller has already
// checked the vector length.
func (b *PredictionBook) Put(user Address, picks []int) {
	old, resubmit := b.Picks[user]
	for slot, team := range picks {
		if resubmit {
			if old[slot] == team {
				continue
			}
			b.unpoint(user, slot, old[slot])
		}
		b.point(user, slot, team)
	}
	b.Picks[user] = append([]int(nil), picks...)
}

func (b *PredictionBook) point(user Address, match, team int) {
	byTeam := b.ByMatch[match]
	if byTeam == nil {
		byTeam = make(map[int]map[Address]bool)
		b.ByMatch[match] = byTeam
	}
	bucket := byTeam[team]
	if bucket == nil {
		bucket = make(map[Address]bool)
		byTeam[team] = bucket
	}
	bucket[user] = true
}

func (b *PredictionBook) unpoint(user Address, match, team int) {
	bucket := b.ByMatch[match][team]
	delete(bucket, user)
	if len(bucket) == 0 {
		delete(b.ByMatch[match], team)
	}
}

func (b *PredictionBook) Clone() *PredictionBook {
	clone := NewPredictionBook()
	for user, picks := range b.Picks {
		clone.Picks[user] = append([]int(nil), picks...)
	}
	for match, byTeam := range b.ByMatch {
		m := make(map[int]map[Address]bool, len(byTeam))
		for team, bucket := range byTeam {
			s := make(map[Address]bool, len(bucket))
			for user := range bucket {
				s[user] = true
			}
			m[team] = s
		}
		clone.ByMatch[match] = m
	}
	return clone
}
