package io

import (
	"testing"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/bcspragu/Conspiracy/game"
	"github.com/google/go-cmp/cmp"
)

func testState() *conspiracy.GameState {
	return &conspiracy.GameState{
		Players: []*conspiracy.Player{
			{ID: "p1", Name: "Alice", Hand: []conspiracy.Card{{Role: conspiracy.Duke}}},
			{ID: "p2", Name: "Bob", Hand: []conspiracy.Card{{Role: conspiracy.Captain}}},
		},
		TurnState: conspiracy.Idle,
	}
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		in   string
		want *game.Move
	}{
		{
			in:   "income",
			want: &game.Move{Player: "p1", Action: game.ActionDeclare, Kind: conspiracy.Income},
		},
		{
			in:   "Steal bob",
			want: &game.Move{Player: "p1", Action: game.ActionDeclare, Kind: conspiracy.Steal, Target: "p2"},
		},
		{
			in:   "block CONTESSA",
			want: &game.Move{Player: "p1", Action: game.ActionBlock, Claim: conspiracy.Contessa},
		},
		{
			in:   "lose 2",
			want: &game.Move{Player: "p1", Action: game.ActionLoseCard, CardIndex: 1},
		},
		{
			in:   "keep 1 3",
			want: &game.Move{Player: "p1", Action: game.ActionKeep, Keep: []int{0, 2}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseMove(testState(), "p1", tc.in)
			if err != nil {
				t.Fatalf("parseMove(%q): %v", tc.in, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseMove(%q) (-want +got)\n%s", tc.in, diff)
			}
		})
	}
}

func TestParseMoveErrors(t *testing.T) {
	for _, in := range []string{"", "frolic", "steal", "steal mallory", "block wizard", "lose one"} {
		if _, err := parseMove(testState(), "p1", in); err == nil {
			t.Errorf("parseMove(%q) parsed, want error", in)
		}
	}
}

func TestWaitingOnVictimFirst(t *testing.T) {
	gs := testState()
	gs.Players = append(gs.Players, &conspiracy.Player{
		ID: "p3", Name: "Carol", Hand: []conspiracy.Card{{Role: conspiracy.Contessa}},
	})
	gs.TurnState = conspiracy.ActionPending
	gs.Pending = &conspiracy.PendingAction{
		Kind:   conspiracy.Steal,
		Actor:  "p1",
		Target: "p3",
	}

	if got, want := WaitingOn(gs), conspiracy.PlayerID("p3"); got != want {
		t.Errorf("WaitingOn = %q, want the victim %q", got, want)
	}

	gs.Pending.Votes = []conspiracy.PlayerID{"p3"}
	if got, want := WaitingOn(gs), conspiracy.PlayerID("p2"); got != want {
		t.Errorf("WaitingOn after victim passed = %q, want %q", got, want)
	}
}
