//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Daler-web-dev/hisbbot/internal/core"
	ports "github.com/Daler-web-dev/hisbbot/internal/sheets"
)

// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_MirrorRoundTrip(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	c, err := NewWithServiceAccount(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	id := "integration-" + uuid.NewString()
	err = c.AppendTransaction(ctx, ports.MirrorRow{
		ID:          id,
		CreatedAt:   time.Now(),
		TelegramID:  1,
		Polarity:    core.Expense,
		Amount:      decimal.NewFromInt(1),
		Category:    core.DefaultCategoryName,
		Description: "integration test",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.RemoveTransaction(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
