package game

import (
	"github.com/shopspring/decimal"
)

// candidate is one entry of the crash-point table: a multiplier and its
// integer draw weight.
type candidate struct {
	Multiplier float64
	Weight     int
}

// baseTable is the hand-tuned 50-candidate crash table. Weights sum to 200:
// 25% of the mass sits on 1.00-1.09, 20% on 1.10-1.19, 30% on the
// 1.20-1.60 sweet spot, 15% on 1.65-2.50 and 10% on the 2.75-10.00 tail.
var baseTable = [50]candidate{
	{1.00, 5}, {1.01, 5}, {1.02, 5}, {1.03, 5}, {1.04, 5},
	{1.05, 5}, {1.06, 5}, {1.07, 5}, {1.08, 5}, {1.09, 5},
	{1.10, 4}, {1.11, 4}, {1.12, 4}, {1.13, 4}, {1.14, 4},
	{1.15, 4}, {1.16, 4}, {1.17, 4}, {1.18, 4}, {1.19, 4},
	{1.20, 12}, {1.30, 12}, {1.40, 12}, {1.50, 12}, {1.60, 12},
	{1.65, 5}, {1.75, 4}, {1.85, 4}, {2.00, 3}, {2.10, 3},
	{2.20, 3}, {2.30, 3}, {2.40, 3}, {2.50, 2}, {2.75, 2},
	{3.00, 2}, {3.25, 2}, {3.50, 1}, {3.75, 1}, {4.00, 2},
	{4.50, 1}, {5.00, 1}, {5.50, 1}, {6.00, 1}, {6.50, 1},
	{7.00, 1}, {7.50, 1}, {8.00, 1}, {9.00, 1}, {10.00, 1},
}

// earlyMultipliers is the uniform pool used when a round carries no real
// wagers, only display bets.
var earlyMultipliers = [...]float64{
	1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.8, 1.9, 2.0, 2.2, 2.5, 3.0,
}

// Exposure bands for the weight adjustment.
var (
	highExposure = decimal.NewFromInt(10000)
	lowExposure  = decimal.NewFromInt(500)
)

// Index boundaries for the exposure adjustment. Index 30 is the first
// candidate at or above 2.20; indices below 20 sit under 1.20.
const (
	lowBandEnd        = 20 // exclusive upper bound of the sub-1.20 block
	midBandStart      = 20
	midBandEnd        = 40 // exclusive
	highBandStart     = 30
	minAdjustedWeight = 1
)

// adjustedWeights returns the weight row for the given aggregate exposure.
// Large exposure shifts mass toward low crash points; small stakes get a
// slightly friendlier mid band. The 500..10000 range draws on the base
// table untouched.
func adjustedWeights(totalAmount decimal.Decimal) [50]int {
	var weights [50]int
	for i, c := range baseTable {
		weights[i] = c.Weight
	}

	switch {
	case totalAmount.GreaterThan(highExposure):
		for i := highBandStart; i < len(weights); i++ {
			if weights[i] > minAdjustedWeight {
				weights[i]--
			}
		}
		for i := 0; i < lowBandEnd; i++ {
			weights[i] += 2
		}
	case totalAmount.LessThan(lowExposure):
		for i := midBandStart; i < midBandEnd; i++ {
			weights[i]++
		}
	}

	return weights
}

func totalWeight(weights [50]int) int64 {
	var total int64
	for _, w := range weights {
		total += int64(w)
	}
	return total
}
