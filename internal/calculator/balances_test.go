package calculator

import (
	"math"
	"testing"

	"github.com/hisaab-app/hisaab-backend/internal/models"
)

func record(amount float64, payer string, participants ...string) models.Record {
	return models.Record{
		Amount:       amount,
		Payer:        payer,
		Participants: participants,
		Split:        EqualSplit(amount, participants),
	}
}

func TestComputeBalancesSumToZero(t *testing.T) {
	records := []models.Record{
		record(10.00, "a", "a", "b", "c"),
		record(25.50, "b", "a", "b"),
		record(7.77, "c", "a", "b", "c"),
	}

	balances := ComputeBalances(records)
	sum := 0.0
	for _, b := range balances {
		sum += b.Amount
	}
	if math.Abs(sum) > 0.01 {
		t.Errorf("balances sum to %v, want 0 within a cent", sum)
	}
}

func TestComputeBalancesSinglePayer(t *testing.T) {
	balances := ComputeBalances([]models.Record{
		record(30.00, "a", "a", "b", "c"),
	})

	want := map[string]float64{"a": 20.00, "b": -10.00, "c": -10.00}
	for _, b := range balances {
		if math.Abs(b.Amount-want[b.Mobile]) > 1e-9 {
			t.Errorf("%s = %v, want %v", b.Mobile, b.Amount, want[b.Mobile])
		}
	}
}

func TestComputeBalancesMultiplePayers(t *testing.T) {
	r := models.Record{
		Amount:    60.00,
		PayerMode: models.PayerMultiple,
		Payers: []models.PayerShare{
			{Mobile: "a", Amount: 40.00},
			{Mobile: "b", Amount: 20.00},
		},
		Participants: []string{"a", "b", "c"},
	}
	r.Split = EqualSplit(r.Amount, r.Participants)

	balances := ComputeBalances([]models.Record{r})
	want := map[string]float64{"a": 20.00, "b": 0.00, "c": -20.00}
	for _, b := range balances {
		if math.Abs(b.Amount-want[b.Mobile]) > 1e-9 {
			t.Errorf("%s = %v, want %v", b.Mobile, b.Amount, want[b.Mobile])
		}
	}
}

func TestSettlingTransfers(t *testing.T) {
	tests := []struct {
		name     string
		balances []Balance
		want     []Transfer
	}{
		{
			name: "single debtor single creditor",
			balances: []Balance{
				{Mobile: "a", Amount: 20.00},
				{Mobile: "b", Amount: -20.00},
			},
			want: []Transfer{{From: "b", To: "a", Amount: 20.00}},
		},
		{
			name: "one creditor covers two debtors",
			balances: []Balance{
				{Mobile: "a", Amount: 30.00},
				{Mobile: "b", Amount: -10.00},
				{Mobile: "c", Amount: -20.00},
			},
			want: []Transfer{
				{From: "b", To: "a", Amount: 10.00},
				{From: "c", To: "a", Amount: 20.00},
			},
		},
		{
			name: "debtor pays two creditors in order",
			balances: []Balance{
				{Mobile: "a", Amount: 10.00},
				{Mobile: "b", Amount: 5.00},
				{Mobile: "c", Amount: -15.00},
			},
			want: []Transfer{
				{From: "c", To: "a", Amount: 10.00},
				{From: "c", To: "b", Amount: 5.00},
			},
		},
		{
			name: "sub-cent residue produces no transfer",
			balances: []Balance{
				{Mobile: "a", Amount: 0.001},
				{Mobile: "b", Amount: -0.001},
			},
			want: nil,
		},
		{
			name:     "all settled",
			balances: []Balance{{Mobile: "a", Amount: 0}, {Mobile: "b", Amount: 0}},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SettlingTransfers(tt.balances)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transfers %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("transfer %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTransfersZeroTheBalances(t *testing.T) {
	records := []models.Record{
		record(10.00, "a", "a", "b", "c"),
		record(99.99, "b", "a", "b", "c"),
		record(0.05, "c", "a", "b"),
	}
	balances := ComputeBalances(records)
	transfers := SettlingTransfers(balances)

	net := make(map[string]float64)
	for _, b := range balances {
		net[b.Mobile] = b.Amount
	}
	for _, tr := range transfers {
		if tr.Amount <= 0 {
			t.Errorf("non-positive transfer: %+v", tr)
		}
		net[tr.From] += tr.Amount
		net[tr.To] -= tr.Amount
	}
	for mobile, rem := range net {
		if math.Abs(rem) > 0.01 {
			t.Errorf("%s left with %v after transfers", mobile, rem)
		}
	}
}
