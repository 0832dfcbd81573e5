package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Polarity = "INCOME"
	Expense Polarity = "EXPENSE"
)

// MaxDescriptionLength is counted in runes.
const MaxDescriptionLength = 200

type (
	// Polarity tells whether a transaction increases or decreases the balance.
	Polarity string

	User struct {
		ID         string
		ExternalID int64 // Telegram user id
		CreatedAt  time.Time
	}

	Category struct {
		ID       string
		UserID   string
		Name     string
		Polarity Polarity
	}

	Transaction struct {
		ID           string
		UserID       string
		Amount       decimal.Decimal
		Polarity     Polarity
		CategoryID   string
		CategoryName string
		Description  string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidPolarity = errors.New("invalid transaction type")
	ErrEmptyCategory   = errors.New("empty category name")
)

// ParsePolarity accepts "income"/"expense" in any case.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", ErrInvalidPolarity
}

func (p Polarity) Validate() error {
	if p != Income && p != Expense {
		return ErrInvalidPolarity
	}
	return nil
}

// Label returns the Russian label used in chat confirmations.
func (p Polarity) Label() string {
	if p == Income {
		return "Доход"
	}
	return "Расход"
}

func (p Polarity) String() string {
	return string(p)
}

// ValidateAmount rejects zero and negative amounts; polarity is the sole sign carrier.
func ValidateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	return c.Polarity.Validate()
}

// TruncateDescription cuts s to MaxDescriptionLength runes.
func TruncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[:MaxDescriptionLength])
}
