package coop

import (
	"cmp"
	"slices"
)

// Direction of a sort key.
type Direction int

// Sort directions
const (
	Ascending Direction = iota
	Descending
)

// Key compares one field of two values.
type Key[T any] struct {
	Compare   func(a, b T) int
	Direction Direction
}

// Asc orders by field ascending.
func Asc[T any, V cmp.Ordered](field func(T) V) Key[T] {
	return Key[T]{Compare: func(a, b T) int { return cmp.Compare(field(a), field(b)) }}
}

// Desc orders by field descending.
func Desc[T any, V cmp.Ordered](field func(T) V) Key[T] {
	return Key[T]{Compare: func(a, b T) int { return cmp.Compare(field(a), field(b)) }, Direction: Descending}
}

// Composite returns a comparator yielding the first non-zero key result.
func Composite[T any](keys ...Key[T]) func(a, b T) int {
	return func(a, b T) int {
		for _, k := range keys {
			c := k.Compare(a, b)
			if k.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

var aggregateOrder = Composite(
	Asc(func(a *Aggregate) float64 { return a.PredictedDuration }),
	Asc(func(a *Aggregate) float64 { return a.PredictedCompletion }),
	Desc(func(a *Aggregate) int { return a.BoostedCount }),
	Desc(func(a *Aggregate) int { return a.TotalTokens }),
)

var playerOrder = Composite(
	Desc(func(p *Player) int64 { return p.ContractScore }),
	Desc(func(p *Player) float64 { return p.Rate }),
	Desc(func(p *Player) float64 { return p.OfflineContribution }),
)

// CompareAggregates orders coops fastest first: predicted duration, then
// completion time, then more boosted players, then more tokens.
func CompareAggregates(a, b *Aggregate) int {
	return aggregateOrder(a, b)
}

// ComparePlayers orders players by score, then rate, then offline contribution, all descending.
func ComparePlayers(a, b *Player) int {
	return playerOrder(a, b)
}

// Sort orders aggregates with CompareAggregates, reversed when reverse is set.
func Sort(aggs []*Aggregate, reverse bool) {
	slices.SortStableFunc(aggs, CompareAggregates)
	if reverse {
		slices.Reverse(aggs)
	}
}
