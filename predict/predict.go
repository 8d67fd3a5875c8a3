// Package predict runs the prediction game over a bracket: it records who
// picked whom, and scores those picks against decided rounds.
package predict

import (
	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/varz"
)

var predictionsSaved = varz.NewInt("predictionsSaved")

// Bracket is the read-only view of a competition's bracket that scoring
// needs.  *model.Competition implements this.  Keeping the dependency this
// narrow means scoring can't accidentally grow a write path into the
// bracket.
type Bracket interface {
	Teams() int
	RoundPoints() int64
	ScoredThrough() int
	Winner(match int) (winner int, completed bool)
}

// BasisPoints is the percentage scale: 10000 means 100.00%.
const BasisPoints = 10000

// Ledger records and scores predictions.  It holds no per-competition state;
// the book lives on the competition and comes in with every call.
type Ledger struct {
	sink gossip.Sink
}

func NewLedger(sink gossip.Sink) *Ledger {
	return &Ledger{sink: sink}
}

// Submit records user's full predicted bracket.  Predictions may be revised
// any number of times until the competition starts; after that the book is
// frozen.  The vector must name one winner per bracket slot.
func (l *Ledger) Submit(c *model.Competition, user model.Address, picks []int) error {
	if c.Predictions == nil {
		return kerr.Validation(kerr.ErrWrongVariant)
	}
	if !c.NotStarted() {
		return kerr.Lifecycle(kerr.ErrAlreadyStarted)
	}
	if len(picks) != c.Teams()-1 {
		return kerr.Validationf("got %d predictions, want %d: %w",
			len(picks), c.Teams()-1, kerr.ErrBadPredictionCount)
	}

	c.Predictions.Put(user, picks)
	predictionsSaved.Add(1)

	l.sink.Publish(gossip.Event{
		Type:  gossip.EventPredictionSaved,
		Owner: c.Owner,
		ID:    c.ID,
		User:  user,
		Picks: append([]int(nil), picks...),
	})
	return nil
}

// Score returns user's accumulated points over every decided round.
func (l *Ledger) Score(b Bracket, book *model.PredictionBook, user model.Address) int64 {
	var sum int64
	forEachScored(b, func(match, winner int, ppm int64) {
		if book.Predictors(match, winner)[user] {
			sum += ppm
		}
	})
	return sum
}

// TotalScore returns the points accumulated by all users over every decided
// round.
func (l *Ledger) TotalScore(b Bracket, book *model.PredictionBook) int64 {
	var sum int64
	forEachScored(b, func(match, winner int, ppm int64) {
		sum += ppm * int64(len(book.Predictors(match, winner)))
	})
	return sum
}

// ScorePercent returns user's share of all points in basis points.  With no
// scored, predicted matches yet there is no denominator, and the answer is 0
// rather than an error; callers rely on that convention.
func (l *Ledger) ScorePercent(b Bracket, book *model.PredictionBook, user model.Address) int64 {
	total := l.TotalScore(b, book)
	if total == 0 {
		return 0
	}
	return l.Score(b, book, user) * BasisPoints / total
}

// forEachScored walks every decided match below the scoring ceiling, handing
// the callback each match's winner and point value.  Round r's matches split
// the per-round budget evenly, so each halving of the match count doubles
// the points per match.
//
// Score and TotalScore must agree on this arithmetic exactly, which is why
// there is one walker.  perMatch degrades to 0 on an empty round rather than
// dividing by zero; see the terminal-round test for why this stays
// unreachable in well-formed state.
func forEachScored(b Bracket, fn func(match, winner int, ppm int64)) {
	end := b.ScoredThrough()
	matches := b.Teams() / 2
	next := matches
	ppm := perMatch(b.RoundPoints(), matches)
	for i := 0; i < end; i++ {
		if i == next {
			matches /= 2
			ppm = perMatch(b.RoundPoints(), matches)
			next += matches
		}
		if winner, done := b.Winner(i); done {
			fn(i, winner, ppm)
		}
	}
}

func perMatch(budget int64, matches int) int64 {
	if matches == 0 {
		return 0
	}
	return budget / int64(matches)
}
