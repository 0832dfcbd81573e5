// Package storage persists users, categories and transactions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Daler-web-dev/hisbbot/internal/core"
)

// ErrNotFound is returned when a looked-up row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so that lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

const transactionColumns = `t.id, t.user_id, t.amount, t.polarity, t.category_id, c.name, t.description, t.created_at`

func init() {
	// SQLite lower() only folds ASCII, descriptions are mostly Cyrillic.
	err := sqlite.RegisterDeterministicScalarFunction("unicode_lower", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("register unicode_lower: %v", err))
	}
}

type (
	// NewTransaction carries the fields the caller decides; id and timestamp
	// are assigned on insert.
	NewTransaction struct {
		UserID      string
		Amount      decimal.Decimal
		Polarity    core.Polarity
		CategoryID  string
		Description string
	}

	// TransactionFilter narrows ListTransactions. Zero values disable a filter.
	TransactionFilter struct {
		Polarity    core.Polarity
		CategoryID  string
		From        *time.Time
		To          *time.Time
		Search      string
		Limit       int
		OldestFirst bool
	}
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// DSN returns the connection string used for dbPath.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindUserByExternalID(ctx context.Context, externalID int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE external_id = ?`, externalID)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %d: %w", externalID, err)
	}
	return u, nil
}

func (r *SQLiteRepository) FindUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, nil
}

// GetOrCreateUser returns the user with externalID, creating it on first use.
// A concurrent insert of the same user is resolved by re-reading.
func (r *SQLiteRepository) GetOrCreateUser(ctx context.Context, externalID int64) (core.User, error) {
	u, err := r.FindUserByExternalID(ctx, externalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return core.User{}, err
	}

	u = core.User{ID: uuid.NewString(), ExternalID: externalID, CreatedAt: r.timestamp()}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, external_id, created_at) VALUES (?, ?, ?)`,
		u.ID, u.ExternalID, u.CreatedAt.Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return r.FindUserByExternalID(ctx, externalID)
		}
		return core.User{}, fmt.Errorf("create user %d: %w", externalID, err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "external_id", externalID)
	return u, nil
}

// GetOrCreateCategory returns the user's category with name and polarity,
// creating it on first use.
func (r *SQLiteRepository) GetOrCreateCategory(ctx context.Context, userID, name string, polarity core.Polarity) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name), Polarity: polarity}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	existing, err := r.findCategoryByName(ctx, userID, c.Name, polarity)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return core.Category{}, err
	}

	c.ID = uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, polarity) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Polarity))
	if err != nil {
		if isUniqueViolation(err) {
			return r.findCategoryByName(ctx, userID, c.Name, polarity)
		}
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, err)
	}

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "polarity", c.Polarity)
	return c, nil
}

func (r *SQLiteRepository) findCategoryByName(ctx context.Context, userID, name string, polarity core.Polarity) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, polarity FROM categories WHERE user_id = ? AND name = ? AND polarity = ?`,
		userID, name, string(polarity))
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

// FindCategory returns the category only when it belongs to userID.
func (r *SQLiteRepository) FindCategory(ctx context.Context, userID, categoryID string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, polarity FROM categories WHERE id = ? AND user_id = ?`,
		categoryID, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %s: %w", categoryID, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, polarity FROM categories WHERE user_id = ? ORDER BY name, polarity`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// CreateTransaction inserts nt stamped with the current UTC time.
// The description is truncated, never rejected.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, nt NewTransaction) (core.Transaction, error) {
	if err := core.ValidateAmount(nt.Amount); err != nil {
		return core.Transaction{}, err
	}
	if err := nt.Polarity.Validate(); err != nil {
		return core.Transaction{}, err
	}

	id := uuid.NewString()
	createdAt := r.timestamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount, polarity, category_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nt.UserID, nt.Amount.String(), string(nt.Polarity), nt.CategoryID,
		nullString(core.TruncateDescription(strings.TrimSpace(nt.Description))),
		createdAt.Format(timeLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"user_id", nt.UserID,
		"amount", nt.Amount.String(),
		"polarity", nt.Polarity)

	return r.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions, newest first unless
// f.OldestFirst is set.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []any{userID}
	)
	if f.Polarity != "" {
		where = append(where, "t.polarity = ?")
		args = append(args, string(f.Polarity))
	}
	if f.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.From != nil {
		where = append(where, "t.created_at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		where = append(where, "t.created_at <= ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "instr(unicode_lower(t.description), ?) > 0")
		args = append(args, strings.ToLower(s))
	}

	order := "DESC"
	if f.OldestFirst {
		order = "ASC"
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.created_at ` + order + `, t.rowid ` + order
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// DeleteTransaction removes the transaction when it belongs to userID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete transaction %s: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) timestamp() time.Time {
	// Truncate to the stored precision so returned values round-trip.
	return r.now().UTC().Truncate(time.Millisecond)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	if err := s.Scan(&u.ID, &u.ExternalID, &createdAt); err != nil {
		return core.User{}, notFound(err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c        core.Category
		polarity string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &polarity); err != nil {
		return core.Category{}, notFound(err)
	}
	c.Polarity = core.Polarity(polarity)
	return c, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t           core.Transaction
		amount      string
		polarity    string
		description sql.NullString
		createdAt   string
	)
	if err := s.Scan(&t.ID, &t.UserID, &amount, &polarity, &t.CategoryID, &t.CategoryName, &description, &createdAt); err != nil {
		return core.Transaction{}, notFound(err)
	}

	v, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}

	t.Amount = v
	t.Polarity = core.Polarity(polarity)
	t.Description = description.String
	t.CreatedAt = ts
	return t, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
