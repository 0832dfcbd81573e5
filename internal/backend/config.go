// Package backend chooses and builds the transaction mirror the worker writes to.
package backend

import (
	"errors"
	"fmt"

	"github.com/Daler-web-dev/hisbbot/internal/config"
)

// MirrorType names a sheets.TransactionMirror implementation.
type MirrorType string

const (
	SheetsMirror MirrorType = "sheets"
	MemoryMirror MirrorType = "memory"
)

func (t MirrorType) String() string {
	return string(t)
}

func (t MirrorType) IsValid() bool {
	switch t {
	case SheetsMirror, MemoryMirror:
		return true
	default:
		return false
	}
}

type Config struct {
	Type MirrorType

	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// FromAppConfig converts the application config. Without an explicit
// MIRROR_BACKEND the sheets mirror is used when a spreadsheet id is set.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := MirrorType(appConfig.MirrorBackend)
	if t == "" {
		t = MemoryMirror
		if appConfig.GoogleSpreadsheetID != "" {
			t = SheetsMirror
		}
	}

	c := Config{
		Type:                t,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}
	if c.Type == SheetsMirror && c.GoogleSpreadsheetID == "" {
		return errors.New("Google Spreadsheet ID is required for sheets mirror")
	}
	return nil
}
