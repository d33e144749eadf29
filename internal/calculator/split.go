// Package calculator holds the pure money math: share splitting, per-member
// balances and the settling transfer plan. Amounts are float64 at the
// boundary and decimal inside, so the rounding policy is exact and
// reproducible.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// floorCents truncates d to 2 decimal places, always toward zero.
func floorCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// EqualShares splits amount into count shares. Every share is the amount
// divided by count floored to whole cents; the last share absorbs the
// remainder so the shares always sum exactly to amount.
//
// 10.00 across 3 yields 3.33, 3.33, 3.34.
func EqualShares(amount float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	total := decimal.NewFromFloat(amount)
	share := floorCents(total.Div(decimal.NewFromInt(int64(count))))

	out := make([]float64, count)
	accumulated := decimal.Zero
	for i := 0; i < count-1; i++ {
		out[i], _ = share.Float64()
		accumulated = accumulated.Add(share)
	}
	out[count-1], _ = total.Sub(accumulated).Float64()
	return out
}

// EqualSplit assigns equal shares of amount to the given participants.
func EqualSplit(amount float64, participants []string) []models.SplitShare {
	shares := EqualShares(amount, len(participants))
	out := make([]models.SplitShare, len(participants))
	for i, mobile := range participants {
		out[i] = models.SplitShare{Mobile: mobile, Amount: shares[i]}
	}
	return out
}

// ItemSplit splits each item equally among its own participants and sums the
// per-person totals. Share order follows first appearance across items.
func ItemSplit(items []models.SplitItem) []models.SplitShare {
	totals := make(map[string]decimal.Decimal)
	var order []string

	for _, item := range items {
		if len(item.Participants) == 0 {
			continue
		}
		shares := EqualShares(item.Amount, len(item.Participants))
		for i, mobile := range item.Participants {
			if _, seen := totals[mobile]; !seen {
				order = append(order, mobile)
			}
			totals[mobile] = totals[mobile].Add(decimal.NewFromFloat(shares[i]))
		}
	}

	out := make([]models.SplitShare, 0, len(order))
	for _, mobile := range order {
		amt, _ := totals[mobile].Float64()
		out = append(out, models.SplitShare{Mobile: mobile, Amount: amt})
	}
	return out
}

// ComputeSplit derives a record's split from its split mode. Equal mode
// splits the full amount across Participants; custom mode splits per item.
func ComputeSplit(r *models.Record) ([]models.SplitShare, error) {
	switch r.SplitMode {
	case models.SplitCustom:
		if len(r.SplitItems) == 0 {
			return nil, apperr.Validation("splitItems", "required for a custom split")
		}
		return ItemSplit(r.SplitItems), nil
	case models.SplitEqual, "":
		if len(r.Participants) == 0 {
			return nil, apperr.Validation("participants", "at least one participant is required")
		}
		return EqualSplit(r.Amount, r.Participants), nil
	default:
		return nil, apperr.Validation("splitMode", "must be equal or custom")
	}
}
