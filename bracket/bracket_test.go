package bracket

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ts4z/knockout/gossip"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/ts"
)

var testEpoch = time.Unix(1_700_000_000, 0)

func newTestMutator(sink gossip.Sink) (*Mutator, *clockwork.FakeClock) {
	fake := clockwork.NewFakeClockAt(testEpoch)
	if sink == nil {
		sink = gossip.Discard
	}
	return NewMutator(ts.New(fake), sink), fake
}

func validParams(numTeams int) CreateParams {
	names := make([]string, numTeams)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	return CreateParams{
		Owner:          "alice",
		ID:             "cup",
		Name:           "The Cup",
		Variant:        model.VariantBracket,
		NumTeams:       numTeams,
		StartEpoch:     testEpoch.Unix() + 3600,
		TeamNames:      names,
		PointsPerRound: 100,
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateParams)
		wantErr error
	}{
		{
			name:    "start in the past",
			mutate:  func(p *CreateParams) { p.StartEpoch = testEpoch.Unix() - 1 },
			wantErr: kerr.ErrStartNotFuture,
		},
		{
			name:    "start exactly now",
			mutate:  func(p *CreateParams) { p.StartEpoch = testEpoch.Unix() },
			wantErr: kerr.ErrStartNotFuture,
		},
		{
			name:    "name count mismatch",
			mutate:  func(p *CreateParams) { p.TeamNames = p.TeamNames[:3] },
			wantErr: kerr.ErrTeamCountMismatch,
		},
		{
			name: "too many teams",
			mutate: func(p *CreateParams) {
				p.NumTeams = 512
				p.TeamNames = make([]string, 512)
			},
			wantErr: kerr.ErrTooManyTeams,
		},
		{
			name: "not a power of two",
			mutate: func(p *CreateParams) {
				p.NumTeams = 6
				p.TeamNames = make([]string, 6)
			},
			wantErr: kerr.ErrNotPowerOfTwo,
		},
		{
			name: "zero teams",
			mutate: func(p *CreateParams) {
				p.NumTeams = 0
				p.TeamNames = nil
			},
			wantErr: kerr.ErrNotPowerOfTwo,
		},
	}

	m, _ := newTestMutator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams(4)
			tt.mutate(&p)
			_, err := m.Create(p)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if kerr.KindOf(err) != kerr.KindConfig {
				t.Errorf("Create() kind = %v, want config", kerr.KindOf(err))
			}
		})
	}
}

func TestCreateShape(t *testing.T) {
	m, _ := newTestMutator(nil)

	c, err := m.Create(validParams(8))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.TotalRounds != 3 || c.RoundsRemaining != 3 {
		t.Errorf("rounds = (%d, %d), want (3, 3)", c.TotalRounds, c.RoundsRemaining)
	}
	if len(c.Bracket) != 7 {
		t.Errorf("bracket has %d slots, want 7", len(c.Bracket))
	}
	if c.Predictions != nil {
		t.Errorf("plain bracket got a prediction book")
	}
	if !c.NotStarted() || c.Live() || c.Finished() {
		t.Errorf("fresh competition not in NotStarted state")
	}

	p := validParams(8)
	p.Variant = model.VariantPredictable
	c, err = m.Create(p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.Predictions == nil {
		t.Errorf("predictable variant missing prediction book")
	}
}

func TestStart(t *testing.T) {
	m, fake := newTestMutator(nil)
	c, err := m.Create(validParams(4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Started two hours later than scheduled; the real time wins.
	fake.Advance(2 * time.Hour)
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !c.Live() {
		t.Errorf("competition not live after Start")
	}
	if c.StartingEpoch != fake.Now().Unix() {
		t.Errorf("StartingEpoch = %d, want %d", c.StartingEpoch, fake.Now().Unix())
	}

	if err := m.Start(c); !errors.Is(err, kerr.ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, kerr.ErrAlreadyStarted)
	}
}

func TestStartExpired(t *testing.T) {
	m, fake := newTestMutator(nil)
	p := validParams(4)
	p.ExpirationEpoch = testEpoch.Unix() + 7200
	c, err := m.Create(p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	fake.Advance(3 * time.Hour)
	if err := m.Start(c); !errors.Is(err, kerr.ErrExpired) {
		t.Errorf("Start() after expiry error = %v, want %v", err, kerr.ErrExpired)
	}
}

func TestSetTeamNames(t *testing.T) {
	m, _ := newTestMutator(nil)
	c, err := m.Create(validParams(4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.SetTeamNames(c, []string{"w", "x", "y"}); !errors.Is(err, kerr.ErrTeamCountMismatch) {
		t.Errorf("short name table error = %v, want %v", err, kerr.ErrTeamCountMismatch)
	}
	if err := m.SetTeamNames(c, []string{"w", "x", "y", "z"}); err != nil {
		t.Fatalf("SetTeamNames() error = %v", err)
	}
	if c.TeamNames[3] != "z" {
		t.Errorf("TeamNames not replaced")
	}

	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.SetTeamNames(c, []string{"a", "b", "c", "d"}); !errors.Is(err, kerr.ErrAlreadyStarted) {
		t.Errorf("SetTeamNames() after start error = %v, want %v", err, kerr.ErrAlreadyStarted)
	}
}

func TestCompleteMatch(t *testing.T) {
	m, _ := newTestMutator(nil)
	c, err := m.Create(validParams(4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.CompleteMatch(c, 0, 0); !errors.Is(err, kerr.ErrNotLive) {
		t.Errorf("CompleteMatch() before start error = %v, want %v", err, kerr.ErrNotLive)
	}

	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Round 1 of a 4-team bracket is matches 0 and 1; match 2 is the final.
	if err := m.CompleteMatch(c, 2, 0); !errors.Is(err, kerr.ErrMatchOutOfRound) {
		t.Errorf("out-of-window error = %v, want %v", err, kerr.ErrMatchOutOfRound)
	}
	if err := m.CompleteMatch(c, 0, 4); !errors.Is(err, kerr.ErrBadWinner) {
		t.Errorf("bad winner error = %v, want %v", err, kerr.ErrBadWinner)
	}
	if err := m.CompleteMatch(c, 0, -1); !errors.Is(err, kerr.ErrBadWinner) {
		t.Errorf("negative winner error = %v, want %v", err, kerr.ErrBadWinner)
	}

	if err := m.CompleteMatch(c, 0, 1); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}
	if winner, done := c.Winner(0); !done || winner != 1 {
		t.Errorf("Winner(0) = (%d, %v), want (1, true)", winner, done)
	}
	if err := m.CompleteMatch(c, 0, 0); !errors.Is(err, kerr.ErrMatchAlreadyCompleted) {
		t.Errorf("duplicate complete error = %v, want %v", err, kerr.ErrMatchAlreadyCompleted)
	}
}

func TestCompleteMatchExpired(t *testing.T) {
	m, fake := newTestMutator(nil)
	p := validParams(4)
	p.ExpirationEpoch = testEpoch.Unix() + 7200
	c, err := m.Create(p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	fake.Advance(3 * time.Hour)
	if err := m.CompleteMatch(c, 0, 0); !errors.Is(err, kerr.ErrExpired) {
		t.Errorf("CompleteMatch() after expiry error = %v, want %v", err, kerr.ErrExpired)
	}
}

func TestAdvanceRound(t *testing.T) {
	m, _ := newTestMutator(nil)
	c, err := m.Create(validParams(4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.AdvanceRound(c); !errors.Is(err, kerr.ErrNotLive) {
		t.Errorf("AdvanceRound() before start error = %v, want %v", err, kerr.ErrNotLive)
	}

	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.CompleteMatch(c, 0, 0); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}

	// Match 1 is still undecided.
	if err := m.AdvanceRound(c); !errors.Is(err, kerr.ErrRoundIncomplete) {
		t.Errorf("AdvanceRound() error = %v, want %v", err, kerr.ErrRoundIncomplete)
	}

	if err := m.CompleteMatch(c, 1, 2); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}
	if err := m.AdvanceRound(c); err != nil {
		t.Fatalf("AdvanceRound() error = %v", err)
	}
	if c.CurrentRound() != 2 {
		t.Errorf("CurrentRound() = %d, want 2", c.CurrentRound())
	}

	if err := m.CompleteMatch(c, 2, 0); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}
	if err := m.AdvanceRound(c); err != nil {
		t.Fatalf("AdvanceRound() error = %v", err)
	}
	if !c.Finished() {
		t.Errorf("competition not finished after final advance")
	}
	if err := m.AdvanceRound(c); !errors.Is(err, kerr.ErrNotLive) {
		t.Errorf("AdvanceRound() after finish error = %v, want %v", err, kerr.ErrNotLive)
	}
}

func TestAdvanceRoundWithResults(t *testing.T) {
	m, _ := newTestMutator(nil)
	c, err := m.Create(validParams(8))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.AdvanceRoundWithResults(c, []int{0, 2}); !errors.Is(err, kerr.ErrBadResultCount) {
		t.Errorf("short results error = %v, want %v", err, kerr.ErrBadResultCount)
	}

	// Match 1 is already decided; its result entry is ignored entirely,
	// even a nonsense one.
	if err := m.CompleteMatch(c, 1, 2); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}
	if err := m.AdvanceRoundWithResults(c, []int{0, 99, 4, 6}); err != nil {
		t.Fatalf("AdvanceRoundWithResults() error = %v", err)
	}

	want := []int{0, 2, 4, 6}
	for i, w := range want {
		if winner, done := c.Winner(i); !done || winner != w {
			t.Errorf("Winner(%d) = (%d, %v), want (%d, true)", i, winner, done, w)
		}
	}
	if c.CurrentRound() != 2 {
		t.Errorf("CurrentRound() = %d, want 2", c.CurrentRound())
	}
}

func TestAdvanceRoundWithResultsAtomic(t *testing.T) {
	m, _ := newTestMutator(nil)
	c, err := m.Create(validParams(8))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// A bad winner in any undecided slot fails the whole call before
	// anything is written.
	if err := m.AdvanceRoundWithResults(c, []int{0, 2, 99, 6}); !errors.Is(err, kerr.ErrBadWinner) {
		t.Fatalf("AdvanceRoundWithResults() error = %v, want %v", err, kerr.ErrBadWinner)
	}
	for i := range c.Bracket {
		if c.Bracket[i].Completed {
			t.Errorf("match %d decided by a failed advance", i)
		}
	}
	if c.CurrentRound() != 1 {
		t.Errorf("CurrentRound() = %d, want 1", c.CurrentRound())
	}
}

func TestEvents(t *testing.T) {
	sink := &captureSink{}
	m, _ := newTestMutator(sink)
	c, err := m.Create(validParams(4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Start(c); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.CompleteMatch(c, 0, 1); err != nil {
		t.Fatalf("CompleteMatch() error = %v", err)
	}
	if err := m.AdvanceRoundWithResults(c, []int{0, 3}); err != nil {
		t.Fatalf("AdvanceRoundWithResults() error = %v", err)
	}

	var types []gossip.EventType
	for _, ev := range sink.events {
		types = append(types, ev.Type)
	}
	want := []gossip.EventType{
		gossip.EventMatchCompleted, // match 0 via CompleteMatch
		gossip.EventMatchCompleted, // match 1 filled by the advance
		gossip.EventRoundAdvanced,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(types), types, len(want))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
	if sink.events[2].Round != 1 {
		t.Errorf("round-advanced names round %d, want 1", sink.events[2].Round)
	}
}

type captureSink struct {
	events []gossip.Event
}

func (s *captureSink) Publish(ev gossip.Event) {
	s.events = append(s.events, ev)
}
