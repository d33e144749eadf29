package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// Balance is one member's net position for a set of records. Positive means
// the member is owed money, negative means they owe.
type Balance struct {
	Mobile string  `json:"mobile"`
	Amount float64 `json:"amount"`
}

// Transfer is one settling payment in the plan.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// advanceThreshold treats residuals at or below a tenth of a cent as
// settled, so accumulated rounding noise never produces an extra transfer.
var advanceThreshold = decimal.NewFromFloat(0.001)

// ComputeBalances nets each member's payments against their owed shares
// across records. Order follows first appearance: payers first, then split
// participants, in record order.
func ComputeBalances(records []models.Record) []Balance {
	totals := make(map[string]decimal.Decimal)
	var order []string

	credit := func(mobile string, amount decimal.Decimal) {
		if _, seen := totals[mobile]; !seen {
			order = append(order, mobile)
		}
		totals[mobile] = totals[mobile].Add(amount)
	}

	for _, r := range records {
		if r.PayerMode == models.PayerMultiple {
			for _, p := range r.Payers {
				credit(p.Mobile, decimal.NewFromFloat(p.Amount))
			}
		} else if r.Payer != "" {
			credit(r.Payer, decimal.NewFromFloat(r.Amount))
		}
		for _, s := range r.Split {
			credit(s.Mobile, decimal.NewFromFloat(s.Amount).Neg())
		}
	}

	out := make([]Balance, 0, len(order))
	for _, mobile := range order {
		amt, _ := totals[mobile].Round(2).Float64()
		out = append(out, Balance{Mobile: mobile, Amount: amt})
	}
	return out
}

// SettlingTransfers builds the payment plan that zeroes the balances.
// Creditors and debtors are walked in their stable input order with two
// pointers; each step settles the smaller of the pair's remainders.
func SettlingTransfers(balances []Balance) []Transfer {
	type party struct {
		mobile    string
		remaining decimal.Decimal
	}

	var creditors, debtors []party
	for _, b := range balances {
		amt := decimal.NewFromFloat(b.Amount)
		switch {
		case amt.GreaterThan(advanceThreshold):
			creditors = append(creditors, party{b.Mobile, amt})
		case amt.Neg().GreaterThan(advanceThreshold):
			debtors = append(debtors, party{b.Mobile, amt.Neg()})
		}
	}

	var out []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].remaining
		if creditors[j].remaining.LessThan(amount) {
			amount = creditors[j].remaining
		}

		rounded, _ := amount.Round(2).Float64()
		if rounded > 0 {
			out = append(out, Transfer{
				From:   debtors[i].mobile,
				To:     creditors[j].mobile,
				Amount: rounded,
			})
		}

		debtors[i].remaining = debtors[i].remaining.Sub(amount)
		creditors[j].remaining = creditors[j].remaining.Sub(amount)

		if debtors[i].remaining.LessThanOrEqual(advanceThreshold) {
			i++
		}
		if creditors[j].remaining.LessThanOrEqual(advanceThreshold) {
			j++
		}
	}
	return out
}
