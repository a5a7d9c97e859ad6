package score

import (
	"math"
	"testing"

	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributionFactor(t *testing.T) {
	testCases := []struct {
		ratio float64
		want  float64
	}{
		{1.0, 4.0},
		{0.0, 1.0},
		{2.5, 3*math.Pow(2.5, 0.15) + 1},
		{5.0, 0.02221*5 + 4.386486},
		{20.0, 0.02221*12.5 + 4.386486},
	}
	for _, tc := range testCases {
		got := ContributionFactor(tc.ratio)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("ContributionFactor(%v) = %v; want %v", tc.ratio, got, tc.want)
		}
	}
}

func TestCompletionTimeBonus(t *testing.T) {
	assert.InDelta(t, 5.0, CompletionTimeBonus(0, 86400), 1e-12)
	assert.InDelta(t, 1.0, CompletionTimeBonus(86400, 86400), 1e-12)
	assert.InDelta(t, 1.5, CompletionTimeBonus(43200, 86400), 1e-12)
}

func TestTokenFactor(t *testing.T) {
	testCases := []struct {
		name      string
		duration  float64
		mpt       float64
		sent, rcv float64
		want      float64
	}{
		{"short max", 86400, 60, 10, 0, 10},
		{"short none", 86400, 60, 0, 0, 0},
		{"short balanced", 86400, 60, 3, 3, 2},
		{"long max", 100 * 3600, 60, 10, 0, 10},
		{"long capped", 200 * 3600, 60, 10, 0, (200.0/1400.0)*10 + (800.0/1400.0)*10},
		{"no token timer", 86400, 0, 10, 0, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenFactor(tc.duration, tc.mpt, tc.sent, tc.rcv)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestChickenRunFactor(t *testing.T) {
	testCases := []struct {
		name   string
		f      Formula
		size   int
		length float64
		want   float64
	}{
		{"legacy small", Legacy{}, 4, 2 * 86400, min(max(12.0/8, 0.3)*4, 6)},
		{"legacy large", Legacy{}, 20, 3 * 86400, 0.3 * 20},
		{"legacy short", Legacy{}, 10, 43200, min(max(12.0/10, 0.3)*3, 6)},
		{"current", Current{}, 10, 86400, 1},
		{"current big", Current{}, 40, 86400, 1},
		{"current solo", Current{}, 1, 86400, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.f.ChickenRunFactor(tc.size, tc.length), 1e-12)
		})
	}
}

func TestTeamworkScore(t *testing.T) {
	assert.InDelta(t, (5*1.0+2+3)/19.0, Legacy{}.TeamworkScore(1, 2, 3), 1e-12)
	assert.InDelta(t, 5.0/19.0*3, Current{}.TeamworkScore(1, 2, 3), 1e-12)
	assert.Equal(t, Current{}.TeamworkScore(1, 2, 0), Current{}.TeamworkScore(1, 2, 100))
}

func TestBuffWeights(t *testing.T) {
	testCases := []struct {
		name      string
		f         Formula
		buff      ei.Buff
		egg, earn float64
	}{
		{"legacy none", Legacy{}, ei.Buff{EggLayingRate: 1, Earnings: 1}, 0, 0},
		{"legacy full", Legacy{}, ei.Buff{EggLayingRate: 1.1, Earnings: 1.5}, 0.75, 0.375},
		{"current none", Current{}, ei.Buff{EggLayingRate: 1, Earnings: 1}, 0, 0},
		{"current tiers", Current{}, ei.Buff{EggLayingRate: 1.05, Earnings: 1.2}, 0.625, 0.0625},
		{"current mid", Current{}, ei.Buff{EggLayingRate: 1.08, Earnings: 1.5}, 1.0, 0.1},
		{"current between", Current{}, ei.Buff{EggLayingRate: 1.06, Earnings: 1.3}, 0.625, 0.0625},
		{"current top", Current{}, ei.Buff{EggLayingRate: 1.10, Earnings: 2.0}, 1.5, 0.15},
		{"current below", Current{}, ei.Buff{EggLayingRate: 0.9, Earnings: 0}, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			egg, earn := tc.f.BuffWeights(tc.buff)
			assert.InDelta(t, tc.egg, egg, 1e-9)
			assert.InDelta(t, tc.earn, earn, 1e-9)
		})
	}
}

func TestBuffTimeValue(t *testing.T) {
	// Equipped 1000s ago, replaced 400s ago, 600s left to run.
	history := []ei.Buff{
		{ServerTimestamp: 400, EggLayingRate: 1.1, Earnings: 1.0},
		{ServerTimestamp: 1000, EggLayingRate: 1.0, Earnings: 1.5},
	}
	// Oldest: 600s of earnings 0.375. Newest: 400+600 = 1000s of egg 0.75.
	got := BuffTimeValue(Legacy{}, history, 600, 0)
	assert.InDelta(t, 600*0.375+1000*0.75, got, 1e-9)

	// Already finished 2000s ago, newest buff contributes nothing.
	got = BuffTimeValue(Legacy{}, history, 0, 2000)
	assert.InDelta(t, 600*0.375, got, 1e-9)

	assert.Equal(t, history[0].ServerTimestamp, 400.0, "input must not be reordered")
	assert.Zero(t, BuffTimeValue(Current{}, nil, 100, 0))
}

func TestBuffFactor(t *testing.T) {
	assert.Equal(t, 0.5, BuffFactor(50, 100))
	assert.Equal(t, 2.0, BuffFactor(500, 100))
	assert.Equal(t, 0.0, BuffFactor(500, 0))
}

func TestContractScore(t *testing.T) {
	// Ratio 1 gives contribution factor 4; duration equal to length gives bonus 1.
	got := ContractScore(259200, 7, 4, 1, 0)
	assert.Equal(t, int64(math.Ceil(2*7*4*187.5)), got)
}

func TestEvaluate(t *testing.T) {
	offset := -100.0
	p := &ei.Contributor{Contribution: 200, Rate: 5, Offset: &offset}
	c := Coop{
		Grade:                     ei.GradeAAA,
		EggGoal:                   1000,
		MaxCoopSize:               10,
		LengthSeconds:             86400,
		MinutesPerToken:           60,
		PredictedSecondsRemaining: 0,
		PredictedDuration:         86400,
	}
	r, err := Evaluate(Current{}, c, p)
	require.NoError(t, err)
	assert.Equal(t, 700.0, r.OfflineContribution)
	assert.Equal(t, 700.0, r.PredictedContribution)
	assert.InDelta(t, 7.0, r.ContributionRatio, 1e-12)
	assert.InDelta(t, 5.0/19.0, r.TeamworkScore, 1e-12)
	assert.Positive(t, r.ContractScore)

	c.Grade = ei.GradeUnset
	_, err = Evaluate(Current{}, c, p)
	assert.ErrorIs(t, err, ei.ErrData)
}

func TestEvaluateScores(t *testing.T) {
	c := Coop{
		Grade:             ei.GradeAAA,
		EggGoal:           1000,
		MaxCoopSize:       10,
		LengthSeconds:     172800,
		MinutesPerToken:   60,
		PredictedDuration: 86400,
	}
	p := &ei.Contributor{
		Contribution: 100,
		BuffHistory:  []ei.Buff{{ServerTimestamp: 86400, EggLayingRate: 1.10, Earnings: 1.50}},
	}

	testCases := []struct {
		name            string
		formula         Formula
		minutesPerToken float64
		buffFactor      float64
		crFactor        float64
		tokenFactor     float64
		teamwork        float64
		want            int64
	}{
		// (1 + 2/3) * 7 * 4 * 1.5 * (1 + 0.19*13/19) * 187.5 = 14831.25
		{"current", Current{}, 60, 1.6, 1, 10, 13.0 / 19.0, 14832},
		// teamwork (5*1.125 + 6 + 10) / 19, score 15963.28125
		{"legacy", Legacy{}, 60, 1.125, 6, 10, 21.625 / 19.0, 15964},
		// 144 boost tokens allotted scales the token factor to 10000/1008
		{"legacy long token timer", Legacy{}, 10, 1.125, 6, 10000.0 / 1008.0, (5.625 + 6 + 10000.0/1008.0) / 19.0, 15953},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := c
			c.MinutesPerToken = tc.minutesPerToken
			r, err := Evaluate(tc.formula, c, p)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, r.ContributionRatio, 1e-12)
			assert.InDelta(t, 4.0, r.ContributionFactor, 1e-12)
			assert.InDelta(t, 1.5, r.CompletionTimeBonus, 1e-12)
			assert.InDelta(t, tc.buffFactor, r.BuffFactor, 1e-12)
			assert.InDelta(t, tc.crFactor, r.ChickenRunFactor, 1e-12)
			assert.InDelta(t, tc.tokenFactor, r.TokenFactor, 1e-9)
			assert.InDelta(t, tc.teamwork, r.TeamworkScore, 1e-9)
			assert.Equal(t, tc.want, r.ContractScore)
		})
	}
}

func TestFor(t *testing.T) {
	assert.Equal(t, "legacy", For(&ei.Contract{Legacy: true}).Name())
	assert.Equal(t, "current", For(&ei.Contract{}).Name())
}
