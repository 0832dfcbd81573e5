package core

import "github.com/shopspring/decimal"

// ParsedTransaction is a chat message turned into ledger terms.
type ParsedTransaction struct {
	Amount       decimal.Decimal
	Polarity     Polarity
	CategoryName string
}

// ParseTransactionText extracts the amount and then classifies the full text.
// Text without a positive amount is never a transaction, whatever keywords it has.
func ParseTransactionText(text string) (ParsedTransaction, bool) {
	amount, ok := ExtractAmount(text)
	if !ok {
		return ParsedTransaction{}, false
	}

	cat := ClassifyCategory(text)
	return ParsedTransaction{
		Amount:       amount,
		Polarity:     cat.Polarity,
		CategoryName: cat.Name,
	}, true
}
