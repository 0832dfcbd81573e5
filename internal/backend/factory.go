package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Daler-web-dev/hisbbot/internal/sheets"
	gsheet "github.com/Daler-web-dev/hisbbot/internal/sheets/google"
	"github.com/Daler-web-dev/hisbbot/internal/sheets/memory"
)

// SheetsConstructor builds the Google Sheets mirror.
type SheetsConstructor func(ctx context.Context, spreadsheetID, sheetName string) (sheets.TransactionMirror, error)

type Factory struct {
	logger    *slog.Logger
	newSheets SheetsConstructor
}

// NewFactory creates a factory that builds Google Sheets mirrors from
// service account credentials in the environment.
func NewFactory(logger *slog.Logger) *Factory {
	return NewFactoryWith(logger, func(ctx context.Context, id, sheet string) (sheets.TransactionMirror, error) {
		return gsheet.NewWithServiceAccount(ctx, id, sheet)
	})
}

// NewFactoryWith uses newSheets in place of the Google client.
func NewFactoryWith(logger *slog.Logger, newSheets SheetsConstructor) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger, newSheets: newSheets}
}

func (f *Factory) CreateMirror(ctx context.Context, config Config) (sheets.TransactionMirror, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsMirror:
		m, err := f.newSheets(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets mirror",
			"spreadsheet_id", config.GoogleSpreadsheetID,
			"sheet", config.GoogleSheetName)
		return m, nil
	default:
		f.logger.Warn("Using in-memory mirror, rows are lost on restart")
		return memory.New(), nil
	}
}
