package service

import (
	"aviator/config"
	"aviator/internal/models"

	"github.com/shopspring/decimal"
)

// NetworkFee returns the fixed per-currency fee estimate, denominated in
// the withdrawal currency. USDT rides on SOL gas, so its estimate is a
// SOL-equivalent surcharge.
func NetworkFee(cfg *config.Config, currency string) decimal.Decimal {
	if currency == models.CurrencyUSDT {
		return decimal.NewFromFloat(cfg.NetworkFeeUSDT)
	}
	return decimal.NewFromFloat(cfg.NetworkFeeSOL)
}

// RequiredBalanceUSD is how much ledger balance a withdrawal needs: the
// requested amount plus the network fee, converted at the given rate.
func RequiredBalanceUSD(cfg *config.Config, currency string, amount, rateUSD decimal.Decimal) decimal.Decimal {
	return amount.Add(NetworkFee(cfg, currency)).Mul(rateUSD)
}
