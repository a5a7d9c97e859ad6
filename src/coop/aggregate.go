package coop

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/score"
)

// BoostedTokenThreshold is the tokens spent at which a player counts as boosted.
const BoostedTokenThreshold = 4

// Player is one scored contributor of a coop.
type Player struct {
	UserID          string
	UserName        string
	Contribution    float64
	Rate            float64
	TokensSpent     int
	TokensAvailable int
	score.Result
}

// Aggregate is the derived trajectory of one coop. It is never modified after Build.
type Aggregate struct {
	ContractID string
	CoopID     string
	Grade      ei.Grade
	Flags      maj.Flags
	Formula    string

	Size                         int
	EggGoal                      float64
	TotalShippingRate            float64
	OfflineEggs                  float64
	TotalShipped                 float64
	EggsRemaining                float64
	SecondsRemaining             float64
	SecondsSinceAllGoalsAchieved float64
	PredictedSecondsRemaining    float64
	PredictedCompletion          float64 // Unix seconds
	PredictedDuration            float64
	BoostedCount                 int
	TotalTokens                  int
	OnTrack                      bool
	Players                      []*Player
}

// maxSeconds is the longest span a time.Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// PredictedDurationTime returns PredictedDuration as a time.Duration,
// saturating instead of overflowing.
func (a *Aggregate) PredictedDurationTime() time.Duration {
	return secondsDuration(a.PredictedDuration)
}

// CompletionTime returns PredictedCompletion as a time.
func (a *Aggregate) CompletionTime() time.Time {
	sec, frac := math.Modf(a.PredictedCompletion)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func secondsDuration(s float64) time.Duration {
	switch {
	case s >= maxSeconds:
		return time.Duration(math.MaxInt64)
	case s <= -maxSeconds:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(s * float64(time.Second))
}

// Build derives a coop aggregate from a snapshot taken at now.
func Build(s *ei.CoopStatus, c *ei.Contract, flags maj.Flags, now time.Time) (*Aggregate, error) {
	if s.Status != ei.StatusNoError {
		return nil, ei.NotFound(s.ContractID, s.CoopID, fmt.Errorf("response status %d", s.Status))
	}
	tier, ok := c.Grade(s.Grade)
	if !ok {
		return nil, ei.DataError(s.ContractID, s.CoopID, "no grade tier %v in contract %s", s.Grade, c.ID)
	}
	if _, ok := s.Grade.Multiplier(); !ok {
		return nil, ei.DataError(s.ContractID, s.CoopID, "unscored grade %v", s.Grade)
	}
	if c.MaxCoopSize <= 0 || tier.EggGoal() <= 0 {
		return nil, ei.DataError(s.ContractID, s.CoopID, "contract %s has no goal or coop size", c.ID)
	}

	a := &Aggregate{
		ContractID:                   s.ContractID,
		CoopID:                       s.CoopID,
		Grade:                        s.Grade,
		Flags:                        flags,
		Size:                         len(s.Contributors),
		EggGoal:                      tier.EggGoal(),
		SecondsRemaining:             s.SecondsRemaining,
		SecondsSinceAllGoalsAchieved: s.SecondsSinceAllGoalsAchieved,
	}

	for i := range s.Contributors {
		p := &s.Contributors[i]
		if !p.Departed() {
			a.TotalShippingRate += p.Rate
		}
		a.OfflineEggs += p.Rate * p.OfflineSeconds()
		if p.TokensSpent >= BoostedTokenThreshold {
			a.BoostedCount++
		}
		a.TotalTokens += p.TokensSpent + p.TokensAvailable
	}

	a.TotalShipped = s.TotalAmount + a.OfflineEggs
	a.EggsRemaining = max(0, a.EggGoal-a.TotalShipped)
	if a.TotalShippingRate > 0 {
		a.PredictedSecondsRemaining = math.Floor(a.EggsRemaining / a.TotalShippingRate)
	}
	a.PredictedCompletion = unixSeconds(now) + a.PredictedSecondsRemaining - s.SecondsSinceAllGoalsAchieved
	a.PredictedDuration = tier.LengthSeconds - s.SecondsRemaining + a.PredictedSecondsRemaining - s.SecondsSinceAllGoalsAchieved
	a.OnTrack = s.TotalAmount+a.TotalShippingRate*s.SecondsRemaining > a.EggGoal

	f := score.For(c)
	a.Formula = f.Name()
	in := score.Coop{
		Grade:                     s.Grade,
		EggGoal:                   a.EggGoal,
		MaxCoopSize:               c.MaxCoopSize,
		LengthSeconds:             tier.LengthSeconds,
		MinutesPerToken:           c.MinutesPerToken,
		PredictedSecondsRemaining: a.PredictedSecondsRemaining,
		SecondsSinceGoals:         s.SecondsSinceAllGoalsAchieved,
		PredictedDuration:         a.PredictedDuration,
	}
	for i := range s.Contributors {
		p := &s.Contributors[i]
		if p.Departed() {
			continue
		}
		r, err := score.Evaluate(f, in, p)
		if err != nil {
			return nil, ei.DataError(s.ContractID, s.CoopID, "scoring %s: %w", p.UserName, err)
		}
		a.Players = append(a.Players, &Player{
			UserID:          p.UserID,
			UserName:        p.UserName,
			Contribution:    p.Contribution,
			Rate:            p.Rate,
			TokensSpent:     p.TokensSpent,
			TokensAvailable: p.TokensAvailable,
			Result:          r,
		})
	}
	slices.SortStableFunc(a.Players, ComparePlayers)
	return a, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// WithFlags returns a copy of a carrying flags. Players are shared.
func (a *Aggregate) WithFlags(flags maj.Flags) *Aggregate {
	b := *a
	b.Flags = flags
	return &b
}
