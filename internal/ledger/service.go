// Package ledger orchestrates recording and reporting of transactions on top
// of the core parsing and aggregation logic.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Daler-web-dev/hisbbot/internal/amqp"
	"github.com/Daler-web-dev/hisbbot/internal/cache"
	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = core.ErrInvalidAmount
	ErrInvalidType          = core.ErrInvalidPolarity
)

// Store is the persistence the service needs; *storage.SQLiteRepository implements it.
type Store interface {
	FindUserByExternalID(ctx context.Context, externalID int64) (core.User, error)
	GetOrCreateUser(ctx context.Context, externalID int64) (core.User, error)
	GetOrCreateCategory(ctx context.Context, userID, name string, polarity core.Polarity) (core.Category, error)
	FindCategory(ctx context.Context, userID, categoryID string) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateTransaction(ctx context.Context, nt storage.NewTransaction) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// Publisher announces transaction changes; *amqp.Client implements it.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event amqp.EventType, id string) error
}

type Option func(*Service)

// WithPublisher enables event publishing. Without it changes are only stored.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCaches sets the user and category lookup caches.
func WithCaches(users cache.Cache[core.User], categories cache.Cache[core.Category]) Option {
	return func(s *Service) {
		s.users = users
		s.categories = categories
	}
}

// WithClock overrides the clock used when a report has no client date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store      Store
	publisher  Publisher
	users      cache.Cache[core.User]
	categories cache.Cache[core.Category]
	now        func() time.Time
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		users:      cache.NewLRUCache[core.User](1000, 30*time.Minute),
		categories: cache.NewLRUCache[core.Category](5000, 30*time.Minute),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type (
	// Recorded is the outcome of a successfully parsed chat message.
	Recorded struct {
		Transaction core.Transaction
		Parsed      core.ParsedTransaction
	}

	CreateTransactionInput struct {
		ExternalID  int64
		Amount      decimal.Decimal
		Type        string
		CategoryID  string
		Description string
	}

	ListQuery struct {
		From       *core.Date
		To         *core.Date
		Type       string
		CategoryID string
		Search     string
		Limit      int
	}

	// TransactionPage is a transaction listing together with the user's
	// categories, as the dashboard filter needs both.
	TransactionPage struct {
		Transactions []core.Transaction
		Categories   []core.Category
	}

	StatsQuery struct {
		From *core.Date
		To   *core.Date
	}
)

// RecordMessage parses chat text and stores the resulting transaction.
// ok is false when the text carries no amount; nothing is stored then.
func (s *Service) RecordMessage(ctx context.Context, externalID int64, text string) (Recorded, bool, error) {
	text = strings.TrimSpace(text)
	parsed, ok := core.ParseTransactionText(text)
	if !ok {
		return Recorded{}, false, nil
	}

	user, err := s.getOrCreateUser(ctx, externalID)
	if err != nil {
		return Recorded{}, true, err
	}
	category, err := s.getOrCreateCategory(ctx, user.ID, parsed.CategoryName, parsed.Polarity)
	if err != nil {
		return Recorded{}, true, err
	}

	tx, err := s.store.CreateTransaction(ctx, storage.NewTransaction{
		UserID:      user.ID,
		Amount:      parsed.Amount,
		Polarity:    parsed.Polarity,
		CategoryID:  category.ID,
		Description: text,
	})
	if err != nil {
		return Recorded{}, true, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionRecorded, tx.ID)
	return Recorded{Transaction: tx, Parsed: parsed}, true, nil
}

// CreateTransaction stores a transaction submitted directly by the client.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	if err := core.ValidateAmount(in.Amount); err != nil {
		return core.Transaction{}, ErrInvalidAmount
	}
	polarity, err := core.ParsePolarity(in.Type)
	if err != nil {
		return core.Transaction{}, ErrInvalidType
	}

	user, err := s.getOrCreateUser(ctx, in.ExternalID)
	if err != nil {
		return core.Transaction{}, err
	}

	category, err := s.store.FindCategory(ctx, user.ID, strings.TrimSpace(in.CategoryID))
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, ErrCategoryNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find category: %w", err)
	}
	if category.Polarity != polarity {
		return core.Transaction{}, ErrCategoryTypeMismatch
	}

	tx, err := s.store.CreateTransaction(ctx, storage.NewTransaction{
		UserID:      user.ID,
		Amount:      in.Amount,
		Polarity:    polarity,
		CategoryID:  category.ID,
		Description: in.Description,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionRecorded, tx.ID)
	return tx, nil
}

// ListTransactions returns the user's transactions newest first together
// with the user's categories, loaded concurrently.
func (s *Service) ListTransactions(ctx context.Context, externalID int64, q ListQuery) (TransactionPage, error) {
	user, err := s.findUser(ctx, externalID)
	if err != nil {
		return TransactionPage{}, err
	}

	filter := storage.TransactionFilter{
		CategoryID: strings.TrimSpace(q.CategoryID),
		Search:     q.Search,
		Limit:      clampLimit(q.Limit),
	}
	// An unrecognized type leaves the list unfiltered.
	if p, err := core.ParsePolarity(q.Type); err == nil {
		filter.Polarity = p
	}
	filter.From, filter.To = bounds(q.From, q.To)

	var page TransactionPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, user.ID, filter)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		page.Transactions = txs
		return nil
	})
	g.Go(func() error {
		cats, err := s.store.ListCategories(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		page.Categories = cats
		return nil
	})
	if err := g.Wait(); err != nil {
		return TransactionPage{}, err
	}
	return page, nil
}

// DeleteTransaction removes one of the user's transactions.
func (s *Service) DeleteTransaction(ctx context.Context, externalID int64, id string) error {
	user, err := s.findUser(ctx, externalID)
	if errors.Is(err, ErrUserNotFound) {
		return ErrTransactionNotFound
	}
	if err != nil {
		return err
	}

	err = s.store.DeleteTransaction(ctx, user.ID, strings.TrimSpace(id))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTransactionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionDeleted, id)
	return nil
}

// Dashboard builds the dashboard report for period relative to the client's
// today (YYYY-MM-DD, empty for the current UTC date).
func (s *Service) Dashboard(ctx context.Context, externalID int64, period, today string) (core.Dashboard, error) {
	interval, err := core.ResolveDateRangeString(period, today, s.now)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	user, err := s.findUser(ctx, externalID)
	if err != nil {
		return core.Dashboard{}, err
	}

	from, to := interval.Start(), interval.End()
	txs, err := s.store.ListTransactions(ctx, user.ID, storage.TransactionFilter{
		From:        &from,
		To:          &to,
		OldestFirst: true,
	})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("list transactions: %w", err)
	}

	return core.AggregateDashboard(txs, interval), nil
}

// Stats aggregates the user's transactions, optionally bounded by dates.
func (s *Service) Stats(ctx context.Context, externalID int64, q StatsQuery) (core.Stats, error) {
	user, err := s.findUser(ctx, externalID)
	if err != nil {
		return core.Stats{}, err
	}

	filter := storage.TransactionFilter{OldestFirst: true}
	filter.From, filter.To = bounds(q.From, q.To)
	txs, err := s.store.ListTransactions(ctx, user.ID, filter)
	if err != nil {
		return core.Stats{}, fmt.Errorf("list transactions: %w", err)
	}

	return core.AggregateStats(txs), nil
}

// Categories lists the user's categories ordered by name.
func (s *Service) Categories(ctx context.Context, externalID int64) ([]core.Category, error) {
	user, err := s.findUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// EnsureCategory returns the user's category with name and type, creating
// the user and the category when needed.
func (s *Service) EnsureCategory(ctx context.Context, externalID int64, name, typ string) (core.Category, error) {
	polarity, err := core.ParsePolarity(typ)
	if err != nil {
		return core.Category{}, ErrInvalidType
	}
	user, err := s.getOrCreateUser(ctx, externalID)
	if err != nil {
		return core.Category{}, err
	}
	return s.getOrCreateCategory(ctx, user.ID, name, polarity)
}

func (s *Service) findUser(ctx context.Context, externalID int64) (core.User, error) {
	if u, ok := s.users.Get(userKey(externalID)); ok {
		return u, nil
	}
	u, err := s.store.FindUserByExternalID(ctx, externalID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	s.users.Set(userKey(externalID), u)
	return u, nil
}

func (s *Service) getOrCreateUser(ctx context.Context, externalID int64) (core.User, error) {
	return cache.GetOrLoad(s.users, userKey(externalID), func() (core.User, error) {
		u, err := s.store.GetOrCreateUser(ctx, externalID)
		if err != nil {
			return core.User{}, fmt.Errorf("get or create user: %w", err)
		}
		return u, nil
	})
}

func (s *Service) getOrCreateCategory(ctx context.Context, userID, name string, polarity core.Polarity) (core.Category, error) {
	name = strings.TrimSpace(name)
	key := userID + "|" + string(polarity) + "|" + name
	return cache.GetOrLoad(s.categories, key, func() (core.Category, error) {
		c, err := s.store.GetOrCreateCategory(ctx, userID, name, polarity)
		if err != nil {
			return core.Category{}, fmt.Errorf("get or create category: %w", err)
		}
		return c, nil
	})
}

func (s *Service) publish(ctx context.Context, event amqp.EventType, id string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "event", event, "id", id)
		return
	}
	// the transaction is already stored, a lost event only delays the mirror
	if err := s.publisher.PublishTransactionEvent(ctx, event, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event", "event", event, "id", id, "error", err)
	}
}

func userKey(externalID int64) string {
	return strconv.FormatInt(externalID, 10)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

// bounds converts optional calendar dates to the instants a filter uses:
// the start of from and the last millisecond of to.
func bounds(from, to *core.Date) (*time.Time, *time.Time) {
	var lo, hi *time.Time
	if from != nil {
		t := from.Time
		lo = &t
	}
	if to != nil {
		t := core.DateInterval{From: *to, To: *to}.End()
		hi = &t
	}
	return lo, hi
}
