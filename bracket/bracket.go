// Package bracket drives a single-elimination competition round by round.
//
// A competition moves NotStarted -> Live -> Completed, one advance per round.
// "Expired" is not a fourth state; it is a condition computed from the clock
// on every call, which is why the Mutator needs a Clock and the model does
// not.
//
// The name "Mutator" matches its role: it owns every write to a
// Competition's bracket and lifecycle flags, and nothing else does.
package bracket

import (
	"math/bits"
	"time"

	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/varz"
)

var (
	matchesCompleted = varz.NewInt("matchesCompleted")
	roundsAdvanced   = varz.NewInt("roundsAdvanced")
)

// Clock gets the current time.  clockwork.Clock implements this.
type Clock interface {
	Now() time.Time
}

type Mutator struct {
	clock Clock
	sink  gossip.Sink
}

func NewMutator(clock Clock, sink gossip.Sink) *Mutator {
	return &Mutator{clock: clock, sink: sink}
}

// MaxTeams bounds bracket size.  256 teams is 8 rounds, which is already a
// bigger bracket than anyone runs.
const MaxTeams = 256

// CreateParams carries everything needed to create a competition.
type CreateParams struct {
	Owner           model.Address
	ID              string
	Name            string
	Banner          string
	Variant         model.Variant
	NumTeams        int
	StartEpoch      int64
	ExpirationEpoch int64 // 0 means no expiration
	TeamNames       []string
	PointsPerRound  int64
}

// Create validates params and produces a fresh competition with an
// all-undecided bracket.  The start must be in the future and the team count
// must be an exact power of two no bigger than MaxTeams.
func (m *Mutator) Create(p CreateParams) (*model.Competition, error) {
	if p.StartEpoch <= m.clock.Now().Unix() {
		return nil, kerr.Config(kerr.ErrStartNotFuture)
	}
	if len(p.TeamNames) != p.NumTeams {
		return nil, kerr.Config(kerr.ErrTeamCountMismatch)
	}
	if p.NumTeams > MaxTeams {
		return nil, kerr.Config(kerr.ErrTooManyTeams)
	}
	if p.NumTeams < 1 || p.NumTeams&(p.NumTeams-1) != 0 {
		return nil, kerr.Config(kerr.ErrNotPowerOfTwo)
	}

	totalRounds := bits.Len(uint(p.NumTeams)) - 1

	c := &model.Competition{
		Owner:           p.Owner,
		ID:              p.ID,
		Name:            p.Name,
		Banner:          p.Banner,
		Variant:         p.Variant,
		NumTeams:        p.NumTeams,
		TotalRounds:     totalRounds,
		RoundsRemaining: totalRounds,
		StartingEpoch:   p.StartEpoch,
		ExpirationEpoch: p.ExpirationEpoch,
		TeamNames:       append([]string(nil), p.TeamNames...),
		PointsPerRound:  p.PointsPerRound,
		Bracket:         make([]model.MatchOutcome, p.NumTeams-1),
	}
	if p.Variant.Predictable() {
		c.Predictions = model.NewPredictionBook()
	}
	return c, nil
}

// Start flips the competition live.  A competition started later than
// planned records the real start time, not the scheduled one.
func (m *Mutator) Start(c *model.Competition) error {
	if c.HasStarted {
		return kerr.Lifecycle(kerr.ErrAlreadyStarted)
	}
	now := m.clock.Now()
	if c.Expired(now) {
		return kerr.Lifecycle(kerr.ErrExpired)
	}
	c.HasStarted = true
	c.StartingEpoch = now.Unix()
	return nil
}

// SetTeamNames replaces the whole name table.  Only allowed before start.
func (m *Mutator) SetTeamNames(c *model.Competition, names []string) error {
	if !c.NotStarted() {
		return kerr.Lifecycle(kerr.ErrAlreadyStarted)
	}
	if len(names) != c.NumTeams {
		return kerr.Config(kerr.ErrTeamCountMismatch)
	}
	c.TeamNames = append([]string(nil), names...)
	return nil
}

// CompleteMatch decides one match in the current round.
func (m *Mutator) CompleteMatch(c *model.Competition, match, winner int) error {
	if !c.Live() {
		return kerr.Lifecycle(kerr.ErrNotLive)
	}
	if c.Expired(m.clock.Now()) {
		return kerr.Lifecycle(kerr.ErrExpired)
	}
	start, count := c.CurrentWindow()
	if match < start || match >= start+count {
		return kerr.Validationf("match %d is outside round %d window [%d,%d): %w",
			match, c.CurrentRound(), start, start+count, kerr.ErrMatchOutOfRound)
	}
	if winner < 0 || winner >= c.NumTeams {
		return kerr.Validationf("team %d: %w", winner, kerr.ErrBadWinner)
	}
	if c.Bracket[match].Completed {
		return kerr.Validation(kerr.ErrMatchAlreadyCompleted)
	}

	c.Bracket[match] = model.MatchOutcome{Winner: winner, Completed: true}
	matchesCompleted.Add(1)

	m.sink.Publish(gossip.Event{
		Type:   gossip.EventMatchCompleted,
		Owner:  c.Owner,
		ID:     c.ID,
		Match:  match,
		Winner: winner,
	})
	return nil
}

// AdvanceRound closes the current round.  Every match in the round's window
// must already be decided.  Closing the last round completes the
// competition.
func (m *Mutator) AdvanceRound(c *model.Competition) error {
	if !c.Live() {
		return kerr.Lifecycle(kerr.ErrNotLive)
	}
	if c.RoundsRemaining == 0 {
		return kerr.Validation(kerr.ErrNoRoundsRemaining)
	}
	start, count := c.CurrentWindow()
	for i := start; i < start+count; i++ {
		if !c.Bracket[i].Completed {
			return kerr.Validationf("match %d undecided: %w", i, kerr.ErrRoundIncomplete)
		}
	}
	m.closeRound(c)
	return nil
}

// AdvanceRoundWithResults closes the current round, filling in any match not
// yet decided from results (one entry per match in the window, in order).
// Matches already decided individually keep their recorded winner; the
// corresponding result entry is ignored.
func (m *Mutator) AdvanceRoundWithResults(c *model.Competition, results []int) error {
	if !c.Live() {
		return kerr.Lifecycle(kerr.ErrNotLive)
	}
	if c.RoundsRemaining == 0 {
		return kerr.Validation(kerr.ErrNoRoundsRemaining)
	}
	start, count := c.CurrentWindow()
	if len(results) != count {
		return kerr.Validationf("got %d results, want %d: %w",
			len(results), count, kerr.ErrBadResultCount)
	}
	for i, winner := range results {
		if c.Bracket[start+i].Completed {
			continue
		}
		if winner < 0 || winner >= c.NumTeams {
			return kerr.Validationf("result %d names team %d: %w", i, winner, kerr.ErrBadWinner)
		}
	}

	for i, winner := range results {
		match := start + i
		if c.Bracket[match].Completed {
			continue
		}
		c.Bracket[match] = model.MatchOutcome{Winner: winner, Completed: true}
		matchesCompleted.Add(1)
		m.sink.Publish(gossip.Event{
			Type:   gossip.EventMatchCompleted,
			Owner:  c.Owner,
			ID:     c.ID,
			Match:  match,
			Winner: winner,
		})
	}
	m.closeRound(c)
	return nil
}

func (m *Mutator) closeRound(c *model.Competition) {
	closed := c.CurrentRound()
	c.RoundsRemaining--
	if c.RoundsRemaining == 0 {
		c.HasFinished = true
	}
	roundsAdvanced.Add(1)

	m.sink.Publish(gossip.Event{
		Type:  gossip.EventRoundAdvanced,
		Owner: c.Owner,
		ID:    c.ID,
		Round: closed,
	})
}
