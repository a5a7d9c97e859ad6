package score

import (
	"math"

	"github.com/mkmccarty/CoopBoard/src/ei"
)

// Formula is one generation of the contract scoring model.
type Formula interface {
	Name() string
	// BuffWeights returns the per-second weight of a buff's egg laying and earnings multipliers.
	BuffWeights(b ei.Buff) (egg float64, earnings float64)
	// ChickenRunFactor assumes every available chicken run was sent.
	ChickenRunFactor(coopSize int, lengthSeconds float64) float64
	TeamworkScore(buffFactor, chickenRunFactor, tokenFactor float64) float64
}

// For selects the formula generation of a contract.
func For(c *ei.Contract) Formula {
	if c.Legacy {
		return Legacy{}
	}
	return Current{}
}

// Legacy is the original scoring generation.
type Legacy struct{}

// Name of the formula
func (Legacy) Name() string { return "legacy" }

// BuffWeights scales the multiplier above 1.0 linearly.
func (Legacy) BuffWeights(b ei.Buff) (float64, float64) {
	return 7.5 * (b.EggLayingRate - 1), 0.75 * (b.Earnings - 1)
}

// ChickenRunFactor uses the run frequency allowed by coop size and contract length.
func (Legacy) ChickenRunFactor(coopSize int, lengthSeconds float64) float64 {
	if coopSize <= 0 {
		return 0
	}
	days := lengthSeconds / 86400
	durationInDays := max(int(days), 1)
	fCR := max(12.0/float64(coopSize*durationInDays), 0.3)
	runs := min(20.0, math.Ceil(float64(coopSize)*days/2.0))
	return min(fCR*runs, 6.0)
}

// TeamworkScore combines buff, chicken run and token factors.
func (Legacy) TeamworkScore(b, cr, t float64) float64 {
	return (5.0*b + cr + t) / 19.0
}

// Current is the present scoring generation.
type Current struct{}

// Name of the formula
func (Current) Name() string { return "current" }

type bucket struct {
	multiplier float64
	weight     float64
}

type weightTable struct {
	buckets []bucket
	top     float64
}

const multiplierEpsilon = 1e-9

// Multipliers between known tiers use the lower tier. Anything above the
// highest tier lands in the top bucket.
func (t weightTable) weight(m float64) float64 {
	last := t.buckets[len(t.buckets)-1]
	if m > last.multiplier+multiplierEpsilon {
		return t.top
	}
	w := 0.0
	for _, b := range t.buckets {
		if m+multiplierEpsilon >= b.multiplier {
			w = b.weight
		}
	}
	return w
}

var (
	eggLayingWeights = weightTable{
		buckets: []bucket{{1.00, 0}, {1.05, 0.625}, {1.08, 1.0}},
		top:     1.5,
	}
	earningsWeights = weightTable{
		buckets: []bucket{{1.00, 0}, {1.20, 0.0625}, {1.50, 0.1}},
		top:     0.15,
	}
)

// BuffWeights looks the multipliers up in the known tier tables.
func (Current) BuffWeights(b ei.Buff) (float64, float64) {
	return eggLayingWeights.weight(b.EggLayingRate), earningsWeights.weight(b.Earnings)
}

// ChickenRunFactor assumes coopSize-1 runs sent.
func (Current) ChickenRunFactor(coopSize int, _ float64) float64 {
	if coopSize <= 1 {
		return 0
	}
	runs := float64(coopSize - 1)
	return min(runs/min(runs, 20), 1)
}

// TeamworkScore drops the token factor.
func (Current) TeamworkScore(b, cr, _ float64) float64 {
	return 5.0 / 19.0 * (b + cr)
}
