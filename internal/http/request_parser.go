// This file implements parsing and validation of query strings and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Daler-web-dev/hisbbot/internal/core"
)

// maxBodyBytes bounds JSON request bodies; Telegram updates fit comfortably.
const maxBodyBytes = 1 << 20

var errTelegramIDRequired = errors.New("telegramId is required")

// ParseTelegramID reads the required telegramId query parameter.
func ParseTelegramID(query url.Values) (int64, error) {
	return parseExternalID(query.Get("telegramId"))
}

func parseExternalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errTelegramIDRequired
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("telegramId must be an integer")
	}
	return id, nil
}

// ParseOptionalDate reads a YYYY-MM-DD query parameter; absent means nil.
func ParseOptionalDate(query url.Values, key string) (*core.Date, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &d, nil
}

// ParseLimit reads limit; missing or invalid values give 0, the service default.
func ParseLimit(query url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("limit")))
	if err != nil {
		return 0
	}
	return n
}

// DecodeJSON decodes a bounded JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decode body: trailing data")
	}
	return nil
}

// createTransactionRequest accepts telegramId and amount as numbers or
// numeric strings.
type createTransactionRequest struct {
	TelegramID  json.Number `json:"telegramId"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	CategoryID  string      `json:"categoryId"`
	Description *string     `json:"description"`
}

type createCategoryRequest struct {
	TelegramID json.Number `json:"telegramId"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, errors.New("amount must be a positive number")
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsPositive() {
		return decimal.Zero, errors.New("amount must be a positive number")
	}
	return d, nil
}

// sanitizeInput trims s and removes control characters except tab, newline
// and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
