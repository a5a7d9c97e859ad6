package leaderboard

import (
	"math"
	"slices"

	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
)

// DefaultTopPlayers is the number of players shown per section.
const DefaultTopPlayers = 10

// RankedPlayer is a player together with the coop they play in.
type RankedPlayer struct {
	CoopID string
	*coop.Player
}

// Standing is the player ranking of one flag section across its coops.
type Standing struct {
	Flag    maj.Flags
	Players []RankedPlayer
	// Total counts every ranked player, not only those kept in Players.
	Total int
	// AverageScore is the ceiling of the mean contract score of all ranked players.
	AverageScore float64
}

// TopPlayers pools the players of every on-track coop carrying flag, orders
// them with coop.ComparePlayers and keeps the first n. n <= 0 keeps all.
func (r *Result) TopPlayers(flag maj.Flags, n int) Standing {
	st := Standing{Flag: flag}
	var players []RankedPlayer
	for _, a := range r.Coops {
		if !a.OnTrack || !a.Flags.Intersects(flag) {
			continue
		}
		for _, p := range a.Players {
			if p.UserName == ei.DepartedUserName {
				continue
			}
			players = append(players, RankedPlayer{CoopID: a.CoopID, Player: p})
		}
	}
	if len(players) == 0 {
		return st
	}
	slices.SortStableFunc(players, func(a, b RankedPlayer) int {
		return coop.ComparePlayers(a.Player, b.Player)
	})

	var sum float64
	for _, p := range players {
		sum += float64(p.ContractScore)
	}
	st.Total = len(players)
	st.AverageScore = math.Ceil(sum / float64(len(players)))
	if n > 0 && n < len(players) {
		players = players[:n]
	}
	st.Players = players
	return st
}
