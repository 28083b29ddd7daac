package game

import (
	"testing"

	"github.com/shopspring/decimal"
)

func earlySet() map[float64]bool {
	set := make(map[float64]bool, len(earlyMultipliers))
	for _, m := range earlyMultipliers {
		set[m] = true
	}
	return set
}

func baseSet() map[float64]bool {
	set := make(map[float64]bool, len(baseTable))
	for _, c := range baseTable {
		set[c.Multiplier] = true
	}
	return set
}

func TestTableShape(t *testing.T) {
	if len(baseTable) != 50 {
		t.Fatalf("expected 50 candidates, got %d", len(baseTable))
	}

	var total int
	prev := 0.0
	for i, c := range baseTable {
		if c.Multiplier <= prev {
			t.Errorf("table not strictly increasing at index %d: %.2f after %.2f", i, c.Multiplier, prev)
		}
		if c.Weight < 1 {
			t.Errorf("candidate %d has non-positive weight %d", i, c.Weight)
		}
		prev = c.Multiplier
		total += c.Weight
	}

	if total != 200 {
		t.Errorf("expected total base weight 200, got %d", total)
	}

	if baseTable[0].Multiplier != 1.00 || baseTable[49].Multiplier != 10.00 {
		t.Errorf("table must span 1.00 to 10.00, got %.2f to %.2f",
			baseTable[0].Multiplier, baseTable[49].Multiplier)
	}

	// Index 30 is the first candidate at or above 2.20; everything below
	// index 20 sits under 1.20. The exposure adjustment depends on both.
	if baseTable[29].Multiplier >= 2.20 || baseTable[30].Multiplier != 2.20 {
		t.Errorf("index 30 must be the first candidate >= 2.20, got %.2f/%.2f",
			baseTable[29].Multiplier, baseTable[30].Multiplier)
	}
	if baseTable[19].Multiplier >= 1.20 || baseTable[20].Multiplier != 1.20 {
		t.Errorf("index 20 must be the first candidate >= 1.20, got %.2f/%.2f",
			baseTable[19].Multiplier, baseTable[20].Multiplier)
	}
}

func TestZeroBetCountDrawsFromEarlySet(t *testing.T) {
	selector := NewSelector(nil)
	set := earlySet()

	for _, amount := range []int64{0, 100, 50000} {
		for i := 0; i < 500; i++ {
			m, err := selector.SelectCrashMultiplier(decimal.NewFromInt(amount), 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !set[m] {
				t.Fatalf("amount %d: %.2f is not in the early multiplier set", amount, m)
			}
		}
	}
}

func TestWeightedDrawStaysOnTable(t *testing.T) {
	selector := NewSelector(nil)
	set := baseSet()

	for _, amount := range []int64{100, 600, 15000} {
		for i := 0; i < 500; i++ {
			m, err := selector.SelectCrashMultiplier(decimal.NewFromInt(amount), 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !set[m] {
				t.Fatalf("amount %d: %.2f is not a table candidate", amount, m)
			}
		}
	}
}

func TestRejectsNegativeInput(t *testing.T) {
	selector := NewSelector(nil)

	if _, err := selector.SelectCrashMultiplier(decimal.NewFromInt(-1), 3); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := selector.SelectCrashMultiplier(decimal.NewFromInt(100), -1); err == nil {
		t.Error("expected error for negative bet count")
	}
}

func TestDistributionConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distribution test in short mode")
	}

	selector := NewSelector(nil)
	amount := decimal.NewFromInt(600) // no-adjustment band

	const draws = 100000
	counts := make(map[float64]int)
	for i := 0; i < draws; i++ {
		m, err := selector.SelectCrashMultiplier(amount, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[m]++
	}

	total := float64(totalWeight(adjustedWeights(amount)))
	for _, c := range baseTable {
		expected := float64(c.Weight) / total
		got := float64(counts[c.Multiplier]) / draws
		if diff := got - expected; diff > 0.01 || diff < -0.01 {
			t.Errorf("multiplier %.2f: frequency %.4f, expected %.4f", c.Multiplier, got, expected)
		}
	}
}

// massAtOrAbove returns the probability mass on candidates >= multiplier
// for a given exposure.
func massAtOrAbove(totalAmount decimal.Decimal, multiplier float64) float64 {
	weights := adjustedWeights(totalAmount)
	total := float64(totalWeight(weights))

	var mass float64
	for i, c := range baseTable {
		if c.Multiplier >= multiplier {
			mass += float64(weights[i])
		}
	}
	return mass / total
}

func TestExposureAdjustmentMonotonicity(t *testing.T) {
	low := massAtOrAbove(decimal.NewFromInt(400), 2.20)
	mid := massAtOrAbove(decimal.NewFromInt(600), 2.20)
	high := massAtOrAbove(decimal.NewFromInt(15000), 2.20)

	if mid > low {
		t.Errorf("mass on >=2.20 increased from 400 (%.4f) to 600 (%.4f)", low, mid)
	}
	if high >= mid {
		t.Errorf("high exposure must strictly cut the tail: %.4f vs %.4f", high, mid)
	}
}

func TestHighExposureAdjustment(t *testing.T) {
	weights := adjustedWeights(decimal.NewFromInt(15000))

	for i := 0; i < 20; i++ {
		if weights[i] != baseTable[i].Weight+2 {
			t.Errorf("index %d: expected weight %d, got %d", i, baseTable[i].Weight+2, weights[i])
		}
	}
	for i := 20; i < 30; i++ {
		if weights[i] != baseTable[i].Weight {
			t.Errorf("index %d: mid band must be untouched, got %d", i, weights[i])
		}
	}
	for i := 30; i < 50; i++ {
		want := baseTable[i].Weight - 1
		if want < 1 {
			want = 1
		}
		if weights[i] != want {
			t.Errorf("index %d: expected weight %d, got %d", i, want, weights[i])
		}
	}

	// The 5.00 candidate carries base weight 1 and must floor there, never
	// rise, however large the exposure.
	for i, c := range baseTable {
		if c.Multiplier == 5.00 {
			if c.Weight != 1 {
				t.Fatalf("5.00 candidate base weight changed: %d", c.Weight)
			}
			if weights[i] != 1 {
				t.Errorf("5.00 candidate must stay at weight 1 under high exposure, got %d", weights[i])
			}
		}
	}
}

func TestLowExposureAdjustment(t *testing.T) {
	weights := adjustedWeights(decimal.NewFromInt(400))

	for i := 0; i < 50; i++ {
		want := baseTable[i].Weight
		if i >= 20 && i < 40 {
			want++
		}
		if weights[i] != want {
			t.Errorf("index %d: expected weight %d, got %d", i, want, weights[i])
		}
	}
}

func TestNoAdjustmentBand(t *testing.T) {
	for _, amount := range []int64{500, 600, 10000} {
		weights := adjustedWeights(decimal.NewFromInt(amount))
		for i := range weights {
			if weights[i] != baseTable[i].Weight {
				t.Errorf("amount %d index %d: expected base weight %d, got %d",
					amount, i, baseTable[i].Weight, weights[i])
			}
		}
	}
}
