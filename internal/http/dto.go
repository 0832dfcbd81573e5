package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/Daler-web-dev/hisbbot/internal/core"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Amounts are written as JSON numbers with their exact decimal digits.
func amountJSON(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type (
	transactionJSON struct {
		ID           string      `json:"id"`
		Amount       json.Number `json:"amount"`
		Type         string      `json:"type"`
		CategoryID   string      `json:"categoryId"`
		CategoryName string      `json:"categoryName"`
		Description  *string     `json:"description"`
		CreatedAt    string      `json:"createdAt"`
	}

	categoryJSON struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}

	summaryJSON struct {
		TotalIncome  json.Number `json:"totalIncome"`
		TotalExpense json.Number `json:"totalExpense"`
		Balance      json.Number `json:"balance"`
	}

	categoryTotalJSON struct {
		CategoryID   string      `json:"categoryId"`
		CategoryName string      `json:"categoryName"`
		Type         string      `json:"type"`
		Total        json.Number `json:"total"`
	}

	dayTotalJSON struct {
		Date  string      `json:"date"`
		Total json.Number `json:"total"`
	}

	dashboardJSON struct {
		Period     string              `json:"period"`
		From       string              `json:"from"`
		To         string              `json:"to"`
		Summary    summaryJSON         `json:"summary"`
		ByCategory []categoryTotalJSON `json:"byCategory"`
		ByDay      []dayTotalJSON      `json:"byDay"`
	}

	statsJSON struct {
		summaryJSON
		ByCategory []categoryTotalJSON `json:"byCategory"`
	}

	transactionListJSON struct {
		Transactions []transactionJSON `json:"transactions"`
		Categories   []categoryJSON    `json:"categories"`
	}

	categoryListJSON struct {
		Categories []categoryJSON `json:"categories"`
	}
)

func toTransactionJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:           t.ID,
		Amount:       amountJSON(t.Amount),
		Type:         string(t.Polarity),
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		CreatedAt:    t.CreatedAt.UTC().Format(timestampLayout),
	}
	if t.Description != "" {
		desc := t.Description
		out.Description = &desc
	}
	return out
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Type: string(c.Polarity)}
}

func toCategoryList(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryJSON(c))
	}
	return out
}

func toSummaryJSON(s core.Summary) summaryJSON {
	return summaryJSON{
		TotalIncome:  amountJSON(s.TotalIncome),
		TotalExpense: amountJSON(s.TotalExpense),
		Balance:      amountJSON(s.Balance),
	}
}

func toCategoryTotals(totals []core.CategoryTotal) []categoryTotalJSON {
	out := make([]categoryTotalJSON, 0, len(totals))
	for _, c := range totals {
		out = append(out, categoryTotalJSON{
			CategoryID:   c.CategoryID,
			CategoryName: c.CategoryName,
			Type:         string(c.Polarity),
			Total:        amountJSON(c.Total),
		})
	}
	return out
}

func toDashboardJSON(period core.Period, d core.Dashboard) dashboardJSON {
	days := make([]dayTotalJSON, 0, len(d.ByDay))
	for _, day := range d.ByDay {
		days = append(days, dayTotalJSON{Date: day.Date.String(), Total: amountJSON(day.Total)})
	}
	return dashboardJSON{
		Period:     string(period),
		From:       d.Interval.From.String(),
		To:         d.Interval.To.String(),
		Summary:    toSummaryJSON(d.Summary),
		ByCategory: toCategoryTotals(d.ByCategory),
		ByDay:      days,
	}
}

func toStatsJSON(s core.Stats) statsJSON {
	return statsJSON{summaryJSON: toSummaryJSON(s.Summary), ByCategory: toCategoryTotals(s.ByCategory)}
}

