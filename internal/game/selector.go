package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Entropy yields a uniform integer in [0, max). The default source is the
// crypto/rand reader; rounds with a published seed commitment use the
// deterministic FairEntropy instead.
type Entropy interface {
	Draw(max int64) (int64, error)
}

type CryptoEntropy struct{}

func (CryptoEntropy) Draw(max int64) (int64, error) {
	if max <= 0 {
		return 0, errors.New("entropy draw: max must be positive")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, fmt.Errorf("entropy draw: %w", err)
	}
	return v.Int64(), nil
}

// Selector picks the crash multiplier for a round.
type Selector struct {
	entropy Entropy
}

func NewSelector(entropy Entropy) *Selector {
	if entropy == nil {
		entropy = CryptoEntropy{}
	}
	return &Selector{entropy: entropy}
}

// SelectCrashMultiplier draws the multiplier at which the round crashes,
// weighted by aggregate exposure. Rounds without real wagers draw uniformly
// from the early pool. A single entropy draw is consumed either way, so the
// result is reproducible from a seeded entropy source.
func (s *Selector) SelectCrashMultiplier(totalAmount decimal.Decimal, totalBetCount int) (float64, error) {
	if totalAmount.IsNegative() {
		return 0, errors.New("total bet amount must not be negative")
	}
	if totalBetCount < 0 {
		return 0, errors.New("total bet count must not be negative")
	}

	if totalBetCount == 0 {
		idx, err := s.entropy.Draw(int64(len(earlyMultipliers)))
		if err != nil {
			return 0, err
		}
		return earlyMultipliers[idx], nil
	}

	weights := adjustedWeights(totalAmount)
	total := totalWeight(weights)

	pick, err := s.entropy.Draw(total)
	if err != nil {
		return 0, err
	}

	// Cumulative walk; identical distribution to expanding each candidate
	// weight-many times and drawing one element flat.
	var cum int64
	for i, w := range weights {
		cum += int64(w)
		if pick < cum {
			return baseTable[i].Multiplier, nil
		}
	}

	return baseTable[len(baseTable)-1].Multiplier, nil
}
