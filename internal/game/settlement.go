package game

import (
	"math"
	"strconv"
	"time"

	"aviator/internal/models"

	"github.com/shopspring/decimal"
)

// PayoutFloor is the house rule: any crash at or below 1.20x pays nothing,
// whatever the recorded cash-out multiplier says.
const PayoutFloor = 1.20

// curveRate drives the on-screen multiplier curve e^(rate*t).
const curveRate = 0.1

// FinalMultiplier applies the payout floor to a crash point.
func FinalMultiplier(crashPoint float64) float64 {
	if crashPoint <= PayoutFloor {
		return 0
	}
	return crashPoint
}

// SettleBet decides the terminal status and payout of a single bet against
// the round's crash point. A bet wins only when it was cashed out at or
// below the crash point; the floor can still zero the payout of a winner.
func SettleBet(amount decimal.Decimal, cashOutMultiplier *float64, crashPoint float64) (string, decimal.Decimal) {
	if cashOutMultiplier == nil || *cashOutMultiplier > crashPoint {
		return models.BetStatusLost, decimal.Zero
	}

	final := FinalMultiplier(crashPoint)
	if final == 0 {
		return models.BetStatusWon, decimal.Zero
	}
	return models.BetStatusWon, amount.Mul(decimal.NewFromFloat(final))
}

// FormatResult renders the round result field: "0" for a floored crash,
// otherwise the multiplier with two decimals.
func FormatResult(crashPoint float64) string {
	if crashPoint <= PayoutFloor {
		return "0"
	}
	return strconv.FormatFloat(crashPoint, 'f', 2, 64)
}

// MultiplierAt returns the display multiplier after elapsed flight time,
// truncated to two decimals.
func MultiplierAt(elapsed time.Duration) float64 {
	m := math.Exp(curveRate * elapsed.Seconds())
	return math.Floor(m*100) / 100
}

// FlightDuration is how long the curve takes to climb to the crash point.
func FlightDuration(crashPoint float64) time.Duration {
	if crashPoint <= 1.0 {
		return 0
	}
	seconds := math.Log(crashPoint) / curveRate
	return time.Duration(seconds * float64(time.Second))
}
