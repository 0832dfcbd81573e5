// Package sheets defines the spreadsheet mirror of recorded transactions.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Daler-web-dev/hisbbot/internal/core"
)

// MirrorRow is the spreadsheet view of one transaction.
type MirrorRow struct {
	ID          string
	CreatedAt   time.Time
	TelegramID  int64
	Polarity    core.Polarity
	Amount      decimal.Decimal
	Category    string
	Description string
}

// Values returns the row cells in column order A..G.
func (r MirrorRow) Values() []any {
	return []any{
		r.ID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.TelegramID,
		string(r.Polarity),
		r.Amount.String(),
		r.Category,
		r.Description,
	}
}

// Ports for outbound adapters.
type (
	// TransactionMirror keeps a spreadsheet copy of transactions. Both
	// operations are idempotent so redelivered events are harmless.
	TransactionMirror interface {
		// AppendTransaction writes the row, replacing an existing row with the same id.
		AppendTransaction(ctx context.Context, row MirrorRow) error
		// RemoveTransaction clears the row with id; a missing row is not an error.
		RemoveTransaction(ctx context.Context, id string) error
	}
)
