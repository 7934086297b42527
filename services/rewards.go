// services/rewards.go
package services

import (
	"fmt"

	"bounty-marketplace/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reward aggregation over a bounty's winning-spot configs. All sums are
// exact decimal arithmetic; floats appear only in the display helpers.
//
// Note the deliberate divergence between list and detail views: list
// endpoints report FirstPlaceReward as the bounty's "current reward",
// while detail/create/update endpoints report TotalReward across all
// positions. Both call sites depend on their respective behavior.

// TotalReward sums the reward of every winning spot.
func TotalReward(configs []models.WinningSpotConfig) decimal.Decimal {
	total := decimal.Zero
	for _, cfg := range configs {
		total = total.Add(cfg.Reward)
	}
	return total
}

// TotalRewardCap sums the reward cap of every winning spot.
func TotalRewardCap(configs []models.WinningSpotConfig) decimal.Decimal {
	total := decimal.Zero
	for _, cfg := range configs {
		total = total.Add(cfg.RewardCap)
	}
	return total
}

// FirstPlaceReward returns the reward of the position-1 spot, or zero
// when no such spot exists. Used as the headline reward in list views.
func FirstPlaceReward(configs []models.WinningSpotConfig) decimal.Decimal {
	for _, cfg := range configs {
		if cfg.Position == 1 {
			return cfg.Reward
		}
	}
	return decimal.Zero
}

var displayPrinter = message.NewPrinter(language.English)

// FormatRewardShort renders a reward for display with K/M suffixes.
// Lossy; never stored.
func FormatRewardShort(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("%.1fM", f/1_000_000)
	case f >= 1_000:
		return fmt.Sprintf("%.1fK", f/1_000)
	default:
		return displayPrinter.Sprintf("%v", amount)
	}
}
