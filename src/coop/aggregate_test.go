package coop

import (
	"math"
	"testing"
	"time"

	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 10, 1, 16, 0, 0, 0, time.UTC)

var testNowUnix = float64(testNow.Unix())

func testContract(legacy bool) *ei.Contract {
	return &ei.Contract{
		ID:              "test-contract",
		MaxCoopSize:     4,
		MinutesPerToken: 60,
		LengthSeconds:   86400,
		Legacy:          legacy,
		Grades: map[ei.Grade]ei.GradeSpec{
			ei.GradeAAA: {Grade: ei.GradeAAA, Goals: []float64{4000, 10000}, LengthSeconds: 86400},
		},
	}
}

func offset(v float64) *float64 {
	return &v
}

func TestBuildPredictedSecondsRemaining(t *testing.T) {
	s := &ei.CoopStatus{
		ContractID:       "test-contract",
		CoopID:           "alpha",
		Grade:            ei.GradeAAA,
		TotalAmount:      5000,
		SecondsRemaining: 3600,
		Contributors: []ei.Contributor{
			{UserName: "a", Rate: 60, Contribution: 3000, TokensSpent: 5, TokensAvailable: 1},
			{UserName: "b", Rate: 40, Contribution: 2000, TokensSpent: 2},
		},
	}
	a, err := Build(s, testContract(false), maj.SpeedRun, testNow)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, a.EggGoal)
	assert.Equal(t, 100.0, a.TotalShippingRate)
	assert.Equal(t, 5000.0, a.EggsRemaining)
	assert.Equal(t, 50.0, a.PredictedSecondsRemaining)
	assert.Equal(t, testNowUnix+50, a.PredictedCompletion)
	assert.Equal(t, testNow.Add(50*time.Second), a.CompletionTime().UTC())
	assert.Equal(t, 86400.0-3600+50, a.PredictedDuration)
	assert.Equal(t, 1, a.BoostedCount)
	assert.Equal(t, 8, a.TotalTokens)
	assert.True(t, a.OnTrack)
	assert.Equal(t, maj.SpeedRun, a.Flags)
	assert.Equal(t, "current", a.Formula)
	require.Len(t, a.Players, 2)
	assert.Equal(t, "a", a.Players[0].UserName)
}

func TestBuildOfflineAndDeparted(t *testing.T) {
	s := &ei.CoopStatus{
		ContractID:       "test-contract",
		CoopID:           "beta",
		Grade:            ei.GradeAAA,
		TotalAmount:      1000,
		SecondsRemaining: 36000,
		Contributors: []ei.Contributor{
			{UserName: "sleepy", Rate: 5, Contribution: 200, Offset: offset(-100)},
			{UserName: ei.DepartedUserName, Rate: 10, Offset: offset(-10), TokensAvailable: 3},
		},
	}
	a, err := Build(s, testContract(true), 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, 5.0, a.TotalShippingRate)
	assert.Equal(t, 600.0, a.OfflineEggs)
	assert.Equal(t, 1600.0, a.TotalShipped)
	assert.Equal(t, 3, a.TotalTokens)
	assert.Equal(t, "legacy", a.Formula)
	require.Len(t, a.Players, 1)
	assert.Equal(t, 700.0, a.Players[0].OfflineContribution)
}

func TestBuildZeroRate(t *testing.T) {
	s := &ei.CoopStatus{
		ContractID:       "test-contract",
		CoopID:           "idle",
		Grade:            ei.GradeAAA,
		TotalAmount:      10,
		SecondsRemaining: 100,
		Contributors:     []ei.Contributor{{UserName: "a"}, {UserName: ei.DepartedUserName, Rate: 50}},
	}
	a, err := Build(s, testContract(false), 0, testNow)
	require.NoError(t, err)
	assert.Zero(t, a.TotalShippingRate)
	assert.Zero(t, a.PredictedSecondsRemaining)
	assert.False(t, a.OnTrack)
}

func TestBuildGoalsAchieved(t *testing.T) {
	s := &ei.CoopStatus{
		ContractID:                   "test-contract",
		CoopID:                       "done",
		Grade:                        ei.GradeAAA,
		TotalAmount:                  12000,
		SecondsRemaining:             50000,
		SecondsSinceAllGoalsAchieved: 600,
		Contributors:                 []ei.Contributor{{UserName: "a", Rate: 10, Contribution: 12000}},
	}
	a, err := Build(s, testContract(false), 0, testNow)
	require.NoError(t, err)
	assert.Zero(t, a.PredictedSecondsRemaining)
	assert.Equal(t, testNowUnix-600, a.PredictedCompletion)
	assert.Equal(t, 86400.0-50000-600, a.PredictedDuration)
}

func TestBuildSlowCoop(t *testing.T) {
	c := testContract(false)
	c.Grades[ei.GradeAAA] = ei.GradeSpec{Grade: ei.GradeAAA, Goals: []float64{1e13}, LengthSeconds: 86400}
	s := &ei.CoopStatus{
		ContractID:       "test-contract",
		CoopID:           "slow",
		Grade:            ei.GradeAAA,
		SecondsRemaining: 3600,
		Contributors:     []ei.Contributor{{UserName: "a", Rate: 100}},
	}
	a, err := Build(s, c, 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, 1e11, a.PredictedSecondsRemaining)
	assert.Equal(t, testNowUnix+1e11, a.PredictedCompletion)
	assert.True(t, a.CompletionTime().After(testNow))
	assert.Equal(t, time.Duration(math.MaxInt64), a.PredictedDurationTime())

	fast := &Aggregate{PredictedDuration: a.PredictedDuration, PredictedCompletion: testNowUnix + 60}
	assert.Equal(t, 1, CompareAggregates(a, fast))
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status *ei.CoopStatus
		kind   error
	}{
		{"not found", &ei.CoopStatus{ContractID: "test-contract", CoopID: "x", Status: ei.StatusCoopNotFound, Grade: ei.GradeAAA}, ei.ErrNotFound},
		{"missing tier", &ei.CoopStatus{ContractID: "test-contract", CoopID: "x", Grade: ei.GradeB}, ei.ErrData},
		{"unset grade", &ei.CoopStatus{ContractID: "test-contract", CoopID: "x", Grade: ei.GradeUnset}, ei.ErrData},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Build(tc.status, testContract(false), 0, testNow)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tc.kind)
			var ce *ei.CoopError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "x", ce.CoopID)
		})
	}
}

func TestBuildIdempotent(t *testing.T) {
	s := &ei.CoopStatus{
		ContractID:       "test-contract",
		CoopID:           "same",
		Grade:            ei.GradeAAA,
		TotalAmount:      3333.3,
		SecondsRemaining: 7777.7,
		Contributors: []ei.Contributor{
			{UserName: "a", Rate: 1.7, Contribution: 1234.5, Offset: offset(-33.3), TokensSpent: 7, BuffHistory: []ei.Buff{{ServerTimestamp: 500, EggLayingRate: 1.05, Earnings: 1.2}}},
			{UserName: "b", Rate: 0.3, Contribution: 99, TokensAvailable: 4},
		},
	}
	for _, legacy := range []bool{false, true} {
		first, err := Build(s, testContract(legacy), maj.Carry, testNow)
		require.NoError(t, err)
		second, err := Build(s, testContract(legacy), maj.Carry, testNow)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestWithFlags(t *testing.T) {
	a := &Aggregate{CoopID: "x", Flags: maj.SpeedRun}
	b := a.WithFlags(maj.Carry)
	assert.Equal(t, maj.SpeedRun, a.Flags)
	assert.Equal(t, maj.Carry, b.Flags)
	assert.Equal(t, "x", b.CoopID)
}
