package score

import (
	"cmp"
	"math"
	"slices"

	"github.com/mkmccarty/CoopBoard/src/ei"
)

// Tokens assumed sent and received when valuing the token factor.
const (
	maxTokenValueSent     = 10.0
	maxTokenValueReceived = 0.0
)

// Coop is the coop level state a contributor is scored against.
type Coop struct {
	Grade                     ei.Grade
	EggGoal                   float64
	MaxCoopSize               int
	LengthSeconds             float64
	MinutesPerToken           float64
	PredictedSecondsRemaining float64
	SecondsSinceGoals         float64
	PredictedDuration         float64
}

// Result holds every factor of a contributor's score.
type Result struct {
	OfflineContribution   float64
	PredictedContribution float64
	ContributionRatio     float64
	BuffTimeValue         float64
	BuffFactor            float64
	ChickenRunFactor      float64
	TokenFactor           float64
	TeamworkScore         float64
	ContributionFactor    float64
	CompletionTimeBonus   float64
	ContractScore         int64
}

// Evaluate scores one contributor. Only an unmapped grade fails.
func Evaluate(f Formula, c Coop, p *ei.Contributor) (Result, error) {
	gradeMultiplier, ok := c.Grade.Multiplier()
	if !ok {
		return Result{}, ei.ErrData
	}

	var r Result
	r.OfflineContribution = p.Contribution + p.Rate*max(0, p.OfflineSeconds()-c.SecondsSinceGoals)
	r.PredictedContribution = r.OfflineContribution + p.Rate*max(0, c.PredictedSecondsRemaining)
	r.ContributionRatio = r.PredictedContribution / (c.EggGoal / float64(c.MaxCoopSize))

	r.BuffTimeValue = BuffTimeValue(f, p.BuffHistory, c.PredictedSecondsRemaining, c.SecondsSinceGoals)
	r.BuffFactor = BuffFactor(r.BuffTimeValue, c.PredictedDuration)
	r.ChickenRunFactor = f.ChickenRunFactor(c.MaxCoopSize, c.LengthSeconds)
	r.TokenFactor = TokenFactor(c.PredictedDuration, c.MinutesPerToken, maxTokenValueSent, maxTokenValueReceived)
	r.TeamworkScore = f.TeamworkScore(r.BuffFactor, r.ChickenRunFactor, r.TokenFactor)

	r.ContributionFactor = ContributionFactor(r.ContributionRatio)
	r.CompletionTimeBonus = CompletionTimeBonus(c.PredictedDuration, c.LengthSeconds)
	r.ContractScore = ContractScore(c.LengthSeconds, gradeMultiplier, r.ContributionFactor, r.CompletionTimeBonus, r.TeamworkScore)
	return r, nil
}

// BuffTimeValue weights the time each buff was equipped. History timestamps
// count seconds before the snapshot, so an entry lasts until the next newer
// one and the newest lasts until predicted completion.
func BuffTimeValue(f Formula, history []ei.Buff, predictedSecondsRemaining, secondsSinceGoals float64) float64 {
	buffs := slices.Clone(history)
	slices.SortStableFunc(buffs, func(a, b ei.Buff) int {
		return cmp.Compare(a.ServerTimestamp, b.ServerTimestamp)
	})

	value := 0.0
	for i, b := range buffs {
		var equipped float64
		if i == 0 {
			equipped = b.ServerTimestamp + predictedSecondsRemaining - secondsSinceGoals
		} else {
			equipped = b.ServerTimestamp - buffs[i-1].ServerTimestamp
		}
		equipped = max(equipped, 0)
		egg, earnings := f.BuffWeights(b)
		value += equipped*egg + equipped*earnings
	}
	return value
}

// BuffFactor is the buff time value per second of the contract, capped at 2.
func BuffFactor(buffTimeValue, predictedDuration float64) float64 {
	if predictedDuration <= 0 {
		return 0
	}
	return min(buffTimeValue/predictedDuration, 2.0)
}

// TokenFactor values tokens sent and net tokens given against the boost token allotment.
func TokenFactor(predictedDuration, minutesPerToken, sent, received float64) float64 {
	bta := 0.0
	if minutesPerToken > 0 {
		bta = math.Floor(predictedDuration / (minutesPerToken * 60))
	}
	net := max(sent-received, 0.0)
	if bta <= 42.0 {
		return (2.0/3.0)*min(sent, 3.0) + (8.0/3.0)*min(net, 3.0)
	}
	return (200.0/(7.0*bta))*min(sent, 0.07*bta) + (800.0/(7.0*bta))*min(net, 0.07*bta)
}

// ContributionFactor rewards contribution above an even share with diminishing returns.
func ContributionFactor(ratio float64) float64 {
	if ratio <= 2.5 {
		return 3*math.Pow(ratio, 0.15) + 1
	}
	return 0.02221*min(ratio, 12.5) + 4.386486
}

// CompletionTimeBonus rewards finishing early in the allowed time.
func CompletionTimeBonus(predictedDuration, lengthSeconds float64) float64 {
	return 4*math.Pow(1-predictedDuration/lengthSeconds, 3) + 1
}

// ContractScore combines the factors into the final rounded up score.
func ContractScore(lengthSeconds, gradeMultiplier, contributionFactor, completionTimeBonus, teamworkScore float64) int64 {
	const (
		basePoints       = 1.0
		durationPoints   = 1.0 / 259200.0
		completionFactor = 1.0
	)
	s := basePoints + durationPoints*lengthSeconds
	s *= gradeMultiplier
	s *= completionFactor
	s *= contributionFactor
	s *= completionTimeBonus
	s *= 1 + 0.19*teamworkScore
	s *= 187.5
	return int64(math.Ceil(s))
}
