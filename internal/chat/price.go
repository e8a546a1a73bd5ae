package chat

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const priceTolerance = 0.01

// PriceChange is the first month whose representative amount differs from
// the previous month's.
type PriceChange struct {
	Month time.Time
	From  float64
	To    float64
}

// Increased is true when the newer price is higher.
func (p PriceChange) Increased() bool { return p.To > p.From }

// Direction is "increased" or "decreased".
func (p PriceChange) Direction() string {
	if p.Increased() {
		return "increased"
	}
	return "decreased"
}

func (p PriceChange) String() string {
	word := "DECREASED"
	if p.Increased() {
		word = "INCREASED"
	}
	return fmt.Sprintf("PRICE %s in %s from %s to %s",
		word, p.Month.Format("January 2006"), FormatRand(p.From), FormatRand(p.To))
}

// DetectPriceChange returns the price-change message for txs, if any.
func DetectPriceChange(txs []Transaction) (string, bool) {
	pc, ok := findPriceChange(txs)
	if !ok {
		return "", false
	}
	return pc.String(), true
}

type monthAmount struct {
	month  time.Time
	amount float64
}

// findPriceChange ignores fees, takes the earliest transaction of each month
// as that month's price and compares consecutive months.
func findPriceChange(txs []Transaction) (PriceChange, bool) {
	type dated struct {
		at     time.Time
		amount float64
	}
	var rows []dated
	for _, t := range txs {
		if t.IsFee() {
			continue
		}
		at, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			continue
		}
		rows = append(rows, dated{at: at, amount: math.Abs(t.Amount)})
	}
	if len(rows) < 2 {
		return PriceChange{}, false
	}
	// amount breaks same-day ties so the result does not depend on input order
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].at.Equal(rows[j].at) {
			return rows[i].at.Before(rows[j].at)
		}
		return rows[i].amount < rows[j].amount
	})

	var months []monthAmount
	for _, r := range rows {
		m := time.Date(r.at.Year(), r.at.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(months) > 0 && months[len(months)-1].month.Equal(m) {
			continue
		}
		months = append(months, monthAmount{month: m, amount: r.amount})
	}
	for i := 1; i < len(months); i++ {
		prev, cur := months[i-1], months[i]
		if math.Abs(cur.amount-prev.amount) > priceTolerance {
			return PriceChange{Month: cur.month, From: prev.amount, To: cur.amount}, true
		}
	}
	return PriceChange{}, false
}
