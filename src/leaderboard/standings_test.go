package leaderboard

import (
	"testing"

	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/score"
	"github.com/stretchr/testify/assert"
)

func player(name string, contractScore int64, rate float64) *coop.Player {
	return &coop.Player{UserName: name, Rate: rate, Result: score.Result{ContractScore: contractScore}}
}

func standingsResult() *Result {
	return &Result{
		ContractID: testContractID,
		Coops: []*coop.Aggregate{
			{CoopID: "alpha", Flags: maj.SpeedRun, OnTrack: true, Players: []*coop.Player{
				player("a1", 300, 10),
				player("a2", 100, 10),
			}},
			{CoopID: "bravo", Flags: maj.SpeedRun | maj.Carry, OnTrack: true, Players: []*coop.Player{
				player("b1", 300, 20),
				player(ei.DepartedUserName, 900, 0),
			}},
			{CoopID: "behind", Flags: maj.SpeedRun, OnTrack: false, Players: []*coop.Player{
				player("x1", 1000, 50),
			}},
			{CoopID: "fast", Flags: maj.FastRun, OnTrack: true, Players: []*coop.Player{
				player("f1", 50, 1),
			}},
		},
	}
}

func TestTopPlayers(t *testing.T) {
	testCases := []struct {
		name    string
		flag    maj.Flags
		n       int
		want    []string
		coops   []string
		total   int
		average float64
	}{
		{"speedrun pooled", maj.SpeedRun, 10, []string{"b1", "a1", "a2"}, []string{"bravo", "alpha", "alpha"}, 3, 234},
		{"truncated", maj.SpeedRun, 2, []string{"b1", "a1"}, []string{"bravo", "alpha"}, 3, 234},
		{"all", maj.SpeedRun, 0, []string{"b1", "a1", "a2"}, []string{"bravo", "alpha", "alpha"}, 3, 234},
		{"carry", maj.Carry, 10, []string{"b1"}, []string{"bravo"}, 1, 300},
		{"fastrun", maj.FastRun, 10, []string{"f1"}, []string{"fast"}, 1, 50},
		{"empty", maj.AnyGrade, 10, nil, nil, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := standingsResult().TopPlayers(tc.flag, tc.n)
			var names, coops []string
			for _, p := range st.Players {
				names = append(names, p.UserName)
				coops = append(coops, p.CoopID)
			}
			assert.Equal(t, tc.flag, st.Flag)
			assert.Equal(t, tc.want, names)
			assert.Equal(t, tc.coops, coops)
			assert.Equal(t, tc.total, st.Total)
			assert.Equal(t, tc.average, st.AverageScore)
		})
	}
}
