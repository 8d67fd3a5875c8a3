package fakes

import (
	"context"
	"testing"

	"github.com/ts4z/knockout/model"
)

func TestFetchOverviewIsSortedByKey(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStorage()
	defer s.Close()

	for _, id := range []string{"zebra", "apple", "mango", "cherry"} {
		c := &model.Competition{Owner: "alice", ID: id, Name: id}
		if err := s.CreateCompetition(ctx, c); err != nil {
			t.Fatalf("CreateCompetition(%q) error = %v", id, err)
		}
	}
	if err := s.CreateCompetition(ctx, &model.Competition{Owner: "bob", ID: "aardvark"}); err != nil {
		t.Fatalf("CreateCompetition(bob) error = %v", err)
	}

	slugs, err := s.FetchOverview(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchOverview() error = %v", err)
	}
	want := []string{"apple", "cherry", "mango", "zebra"}
	if len(slugs) != len(want) {
		t.Fatalf("FetchOverview() returned %d slugs, want %d", len(slugs), len(want))
	}
	for i, w := range want {
		if slugs[i].ID != w {
			t.Errorf("slugs[%d].ID = %q, want %q", i, slugs[i].ID, w)
		}
	}
}
