package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

type (
	Summary struct {
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		Balance      decimal.Decimal
	}

	CategoryTotal struct {
		CategoryID   string
		CategoryName string
		Polarity     Polarity
		Total        decimal.Decimal
	}

	DayTotal struct {
		Date  Date
		Total decimal.Decimal
	}

	// Dashboard is the primary report: expense-only categories and a
	// gap-filled expense series.
	Dashboard struct {
		Interval   DateInterval
		Summary    Summary
		ByCategory []CategoryTotal
		ByDay      []DayTotal
	}

	// Stats is the stats-style report: categories of both polarities, no series.
	Stats struct {
		Summary    Summary
		ByCategory []CategoryTotal
	}
)

// categoryKey identifies a (category, polarity) bucket.
type categoryKey struct {
	id       string
	polarity Polarity
}

// categoryAccumulator sums amounts per key, remembering first-seen order.
type categoryAccumulator struct {
	index  map[categoryKey]int
	totals []CategoryTotal
}

func newCategoryAccumulator() *categoryAccumulator {
	return &categoryAccumulator{index: make(map[categoryKey]int)}
}

func (a *categoryAccumulator) add(t Transaction) {
	key := categoryKey{id: t.CategoryID, polarity: t.Polarity}
	if i, ok := a.index[key]; ok {
		a.totals[i].Total = a.totals[i].Total.Add(t.Amount)
		return
	}
	a.index[key] = len(a.totals)
	a.totals = append(a.totals, CategoryTotal{
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		Polarity:     t.Polarity,
		Total:        t.Amount,
	})
}

func (a *categoryAccumulator) result() []CategoryTotal {
	out := make([]CategoryTotal, len(a.totals))
	copy(out, a.totals)
	return out
}

// Summarize totals income and expense; balance is income minus expense.
func Summarize(txs []Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.Polarity == Income {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return Summary{TotalIncome: income, TotalExpense: expense, Balance: income.Sub(expense)}
}

// AggregateDashboard builds the dashboard report for transactions already
// restricted to interval. Only expenses contribute to ByCategory and ByDay.
func AggregateDashboard(txs []Transaction, interval DateInterval) Dashboard {
	cats := newCategoryAccumulator()
	days := make(map[string]decimal.Decimal)
	for _, d := range interval.Days() {
		days[d.String()] = decimal.Zero
	}

	for _, t := range txs {
		if t.Polarity != Expense {
			continue
		}
		cats.add(t)
		key := DateOf(t.CreatedAt).String()
		if cur, ok := days[key]; ok {
			days[key] = cur.Add(t.Amount)
		}
	}

	return Dashboard{
		Interval:   interval,
		Summary:    Summarize(txs),
		ByCategory: cats.result(),
		ByDay:      sortedDays(days),
	}
}

// AggregateStats builds the stats report, reporting both income and expense categories.
func AggregateStats(txs []Transaction) Stats {
	cats := newCategoryAccumulator()
	for _, t := range txs {
		cats.add(t)
	}
	return Stats{Summary: Summarize(txs), ByCategory: cats.result()}
}

func sortedDays(days map[string]decimal.Decimal) []DayTotal {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DayTotal, 0, len(keys))
	for _, k := range keys {
		d, _ := ParseDate(k)
		out = append(out, DayTotal{Date: d, Total: days[k]})
	}
	return out
}
