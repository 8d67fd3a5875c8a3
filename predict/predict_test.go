package predict

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ts4z/knockout/bracket"
	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/ts"
)

var testEpoch = time.Unix(1_700_000_000, 0)

// harness builds a predictable 4-team competition with a 100-point round
// budget, using the real bracket mutator so the lifecycle is honest.
type harness struct {
	m *bracket.Mutator
	l *Ledger
	c *model.Competition
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := ts.New(clockwork.NewFakeClockAt(testEpoch))
	m := bracket.NewMutator(clock, gossip.Discard)
	c, err := m.Create(bracket.CreateParams{
		Owner:          "alice",
		ID:             "cup",
		Variant:        model.VariantPredictable,
		NumTeams:       4,
		StartEpoch:     testEpoch.Unix() + 3600,
		TeamNames:      []string{"a", "b", "c", "d"},
		PointsPerRound: 100,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return &harness{m: m, l: NewLedger(gossip.Discard), c: c}
}

func (h *harness) mustSubmit(t *testing.T, user model.Address, picks []int) {
	t.Helper()
	if err := h.l.Submit(h.c, user, picks); err != nil {
		t.Fatalf("Submit(%s) error = %v", user, err)
	}
}

func (h *harness) mustComplete(t *testing.T, match, winner int) {
	t.Helper()
	if err := h.m.CompleteMatch(h.c, match, winner); err != nil {
		t.Fatalf("CompleteMatch(%d, %d) error = %v", match, winner, err)
	}
}

func (h *harness) mustAdvance(t *testing.T) {
	t.Helper()
	if err := h.m.AdvanceRound(h.c); err != nil {
		t.Fatalf("AdvanceRound() error = %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)

	plain := h.c.Clone()
	plain.Predictions = nil
	if err := h.l.Submit(plain, "bob", []int{0, 2, 0}); !errors.Is(err, kerr.ErrWrongVariant) {
		t.Errorf("Submit() on plain bracket error = %v, want %v", err, kerr.ErrWrongVariant)
	}

	if err := h.l.Submit(h.c, "bob", []int{0, 2}); !errors.Is(err, kerr.ErrBadPredictionCount) {
		t.Errorf("short vector error = %v, want %v", err, kerr.ErrBadPredictionCount)
	}

	if err := h.m.Start(h.c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.l.Submit(h.c, "bob", []int{0, 2, 0}); !errors.Is(err, kerr.ErrAlreadyStarted) {
		t.Errorf("Submit() after start error = %v, want %v", err, kerr.ErrAlreadyStarted)
	}
}

func TestResubmissionBeforeStart(t *testing.T) {
	h := newHarness(t)
	h.mustSubmit(t, "bob", []int{0, 2, 0})

	before := h.c.Predictions.Clone()
	h.mustSubmit(t, "bob", []int{0, 2, 0})
	if !reflect.DeepEqual(h.c.Predictions, before) {
		t.Errorf("identical resubmission changed the book")
	}

	h.mustSubmit(t, "bob", []int{0, 2, 2})
	if h.c.Predictions.Predictors(2, 0)["bob"] {
		t.Errorf("bob still indexed under old pick for the final")
	}
	if !h.c.Predictions.Predictors(2, 2)["bob"] {
		t.Errorf("bob not indexed under new pick for the final")
	}
}

// TestScoreWaitsForAdvance walks a full 4-team competition and checks the
// scoring boundary: completed matches in the round still in play are worth
// nothing until the round is advanced.
func TestScoreWaitsForAdvance(t *testing.T) {
	h := newHarness(t)
	h.mustSubmit(t, "alice", []int{0, 2, 0})
	h.mustSubmit(t, "bob", []int{1, 2, 2})

	if err := h.m.Start(h.c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.mustComplete(t, 0, 0)
	h.mustComplete(t, 1, 2)
	if got := h.l.Score(h.c, h.c.Predictions, "alice"); got != 0 {
		t.Errorf("Score(alice) before advance = %d, want 0", got)
	}
	if got := h.l.TotalScore(h.c, h.c.Predictions); got != 0 {
		t.Errorf("TotalScore() before advance = %d, want 0", got)
	}

	// Round 1 closed: two matches split 100 points, 50 each.
	h.mustAdvance(t)
	if got := h.l.Score(h.c, h.c.Predictions, "alice"); got != 100 {
		t.Errorf("Score(alice) = %d, want 100", got)
	}
	if got := h.l.Score(h.c, h.c.Predictions, "bob"); got != 50 {
		t.Errorf("Score(bob) = %d, want 50", got)
	}
	if got := h.l.TotalScore(h.c, h.c.Predictions); got != 150 {
		t.Errorf("TotalScore() = %d, want 150", got)
	}

	// The final is one match worth the full 100.
	h.mustComplete(t, 2, 0)
	h.mustAdvance(t)
	if !h.c.Finished() {
		t.Fatalf("competition not finished")
	}
	if got := h.l.Score(h.c, h.c.Predictions, "alice"); got != 200 {
		t.Errorf("final Score(alice) = %d, want 200", got)
	}
	if got := h.l.Score(h.c, h.c.Predictions, "bob"); got != 50 {
		t.Errorf("final Score(bob) = %d, want 50", got)
	}
	if got := h.l.TotalScore(h.c, h.c.Predictions); got != 250 {
		t.Errorf("final TotalScore() = %d, want 250", got)
	}

	if got := h.l.ScorePercent(h.c, h.c.Predictions, "alice"); got != 8000 {
		t.Errorf("ScorePercent(alice) = %d, want 8000", got)
	}
	if got := h.l.ScorePercent(h.c, h.c.Predictions, "bob"); got != 2000 {
		t.Errorf("ScorePercent(bob) = %d, want 2000", got)
	}
}

func TestScorePercentNoDenominator(t *testing.T) {
	h := newHarness(t)
	h.mustSubmit(t, "alice", []int{0, 2, 0})

	// Nothing decided yet: no points anywhere, and the share is 0 rather
	// than a division failure.
	if got := h.l.ScorePercent(h.c, h.c.Predictions, "alice"); got != 0 {
		t.Errorf("ScorePercent() with no scored matches = %d, want 0", got)
	}

	// Same if rounds are decided but nobody's picks earned anything.
	if err := h.m.Start(h.c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.mustComplete(t, 0, 1)
	h.mustComplete(t, 1, 3)
	h.mustAdvance(t)
	if got := h.l.TotalScore(h.c, h.c.Predictions); got != 0 {
		t.Fatalf("TotalScore() = %d, want 0", got)
	}
	if got := h.l.ScorePercent(h.c, h.c.Predictions, "alice"); got != 0 {
		t.Errorf("ScorePercent() with zero total = %d, want 0", got)
	}
}

func TestPerMatchEmptyRound(t *testing.T) {
	// The walker never sees an empty round on a well-formed bracket, but
	// the arithmetic degrades to 0 instead of dividing by zero.
	if got := perMatch(100, 0); got != 0 {
		t.Errorf("perMatch(100, 0) = %d, want 0", got)
	}
}

func TestPointValueDoublesEachRound(t *testing.T) {
	clock := ts.New(clockwork.NewFakeClockAt(testEpoch))
	m := bracket.NewMutator(clock, gossip.Discard)
	c, err := m.Create(bracket.CreateParams{
		Owner:          "alice",
		ID:             "big",
		Variant:        model.VariantPredictable,
		NumTeams:       8,
		StartEpoch:     testEpoch.Unix() + 3600,
		TeamNames:      make([]string, 8),
		PointsPerRound: 120,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	l := NewLedger(gossip.Discard)

	// carol calls every match for team 0.
	if err := l.Submit(c, "carol", []int{0, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 120 points per round: 30 per match in round 1, 60 in round 2, 120
	// for the final.
	results := [][]int{{0, 2, 4, 6}, {0, 4}, {0}}
	for r, res := range results {
		if err := m.AdvanceRoundWithResults(c, res); err != nil {
			t.Fatalf("round %d advance error = %v", r+1, err)
		}
	}

	// Team 0 won matches 0, 4, and 6, the ones carol earns for:
	// 30 + 60 + 120.
	if got := l.Score(c, c.Predictions, "carol"); got != 210 {
		t.Errorf("Score(carol) = %d, want 210", got)
	}
}
