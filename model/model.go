package model

import (
	"time"
)

// Address identifies an account: a competition owner, a predictor, or a
// custodial pool.  Identity proofs are somebody else's problem; by the time
// an Address reaches this package it is trusted.
type Address string

// Variant selects which behavior a competition carries.
type Variant int

const (
	// VariantBracket is a plain bracket.  No predictions, no money.
	VariantBracket Variant = iota
	// VariantPredictable adds the free prediction game.
	VariantPredictable
	// VariantPaidPredictable adds the escrowed entry fee and reward pool.
	VariantPaidPredictable
)

func (v Variant) String() string {
	switch v {
	case VariantBracket:
		return "bracket"
	case VariantPredictable:
		return "predictable"
	case VariantPaidPredictable:
		return "paid-predictable"
	default:
		return "invalid"
	}
}

// Predictable reports whether this variant records predictions at all.
func (v Variant) Predictable() bool {
	return v == VariantPredictable || v == VariantPaidPredictable
}

// MatchOutcome is one slot in the bracket.  Winner is meaningless until
// Completed is set.
type MatchOutcome struct {
	Winner    int
	Completed bool
}

// Competition is the whole state of one bracket competition.  It is the unit
// of storage and the unit of serialization; everything in here is a plain
// value so a deep copy is cheap and honest.
//
// The bracket is a round-major flattening of the elimination tree: round 1
// first, the championship match last, at index NumTeams-2.  Round r
// (1-indexed) occupies the window starting at NumTeams - NumTeams/2^(r-1)
// with NumTeams/2^r matches.  All window arithmetic lives on this type so
// that the bracket, prediction, and escrow packages agree on it by
// construction.
type Competition struct {
	Owner   Address
	ID      string
	Version int64 // optimistic lock, maintained by storage

	Name    string
	Banner  string
	Variant Variant

	NumTeams        int
	TotalRounds     int
	RoundsRemaining int
	StartingEpoch   int64
	ExpirationEpoch int64 // unix seconds; 0 means no expiration
	HasStarted      bool
	HasFinished     bool

	TeamNames      []string
	PointsPerRound int64
	Bracket        []MatchOutcome

	Predictions *PredictionBook // nil unless Variant.Predictable()
	Purse       *Purse          // nil unless VariantPaidPredictable
}

func (c *Competition) Teams() int {
	return c.NumTeams
}

func (c *Competition) RoundPoints() int64 {
	return c.PointsPerRound
}

// MatchesInRound returns the number of matches in round r (1-indexed), or 0
// for a round the bracket doesn't have.
func (c *Competition) MatchesInRound(r int) int {
	if r < 1 || r > c.TotalRounds {
		return 0
	}
	return c.NumTeams >> uint(r)
}

// RoundStart returns the bracket index of round r's first match.
func (c *Competition) RoundStart(r int) int {
	return c.NumTeams - c.NumTeams>>uint(r-1)
}

// CurrentRound returns the 1-indexed round now in play, or 0 if every round
// has been advanced.
func (c *Competition) CurrentRound() int {
	if c.RoundsRemaining == 0 {
		return 0
	}
	return c.TotalRounds - c.RoundsRemaining + 1
}

// CurrentWindow returns the active round's window as (start, count).
// When no rounds remain the count is 0.
func (c *Competition) CurrentWindow() (start, count int) {
	r := c.CurrentRound()
	if r == 0 {
		return c.NumTeams - 1, 0
	}
	return c.RoundStart(r), c.MatchesInRound(r)
}

// ScoredThrough returns the exclusive upper bound of bracket indices eligible
// for scoring: everything before the live round, or the whole bracket once
// the competition has finished.  Matches in the live round stay out of
// scoring until the round is advanced, even if individually completed.
func (c *Competition) ScoredThrough() int {
	if c.HasFinished {
		return c.NumTeams - 1
	}
	start, _ := c.CurrentWindow()
	return start
}

// Winner returns the winning team of a bracket slot and whether the match
// has been decided.
func (c *Competition) Winner(match int) (int, bool) {
	o := c.Bracket[match]
	return o.Winner, o.Completed
}

func (c *Competition) NotStarted() bool {
	return !c.HasStarted
}

func (c *Competition) Live() bool {
	return c.HasStarted && !c.HasFinished
}

func (c *Competition) Finished() bool {
	return c.HasFinished
}

// Expired is a derived condition, not a stored state: the expiration epoch
// has passed and the competition never finished.
func (c *Competition) Expired(now time.Time) bool {
	return c.ExpirationEpoch != 0 && now.Unix() >= c.ExpirationEpoch && !c.HasFinished
}

// Clone deep-copies the competition.  Storage and caches hand out clones so
// a caller mutating its copy can't corrupt anybody else's view.
func (c *Competition) Clone() *Competition {
	cpy := *c
	cpy.TeamNames = append([]string(nil), c.TeamNames...)
	cpy.Bracket = append([]MatchOutcome(nil), c.Bracket...)
	if c.Predictions != nil {
		cpy.Predictions = c.Predictions.Clone()
	}
	if c.Purse != nil {
		cpy.Purse = c.Purse.Clone()
	}
	return &cpy
}

// Key returns the composite storage key for a competition.  Owner addresses
// never contain '/', so the encoding is unambiguous.
func Key(owner Address, id string) string {
	return string(owner) + "/" + id
}

func (c *Competition) Key() string {
	return Key(c.Owner, c.ID)
}

// CompetitionSlug is a lightweight representation of a competition for lists.
type CompetitionSlug struct {
	Owner   Address
	ID      string
	Name    string
	Variant Variant
}
