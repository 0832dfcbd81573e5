package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/cache"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
	applog "github.com/Daler-web-dev/hisbbot/internal/log"
	"github.com/Daler-web-dev/hisbbot/internal/storage"
	"github.com/Daler-web-dev/hisbbot/internal/telegram"
)

type fakeBot struct {
	updates []tgbotapi.Update
	err     error
}

func (f *fakeBot) HandleUpdate(ctx context.Context, u tgbotapi.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

type testServer struct {
	*Server
	bot *fakeBot
}

func newTestServer(t *testing.T, rateLimit int) testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	bot := &fakeBot{}
	srv := NewServer(Options{
		Addr:               ":0",
		Ledger:             ledger.NewService(repo),
		Bot:                bot,
		DB:                 repo,
		WebhookSecret:      "s3cret",
		RateLimitPerMinute: rateLimit,
		Logger:             applog.New(applog.Config{Output: io.Discard}),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, bot: bot}
}

func (s testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "203.0.113.10:4000"
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if got := decode[errorBody](t, rec).Error; !strings.Contains(got, msg) {
		t.Fatalf("expected error containing %q, got %q", msg, got)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, 100)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := s.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing middleware headers: %v", rec.Header())
	}
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(t, 100)
	tests := []struct {
		target string
		status int
		msg    string
	}{
		{"/api/dashboard", http.StatusBadRequest, "telegramId is required"},
		{"/api/dashboard?telegramId=abc", http.StatusBadRequest, "telegramId must be an integer"},
		{"/api/dashboard?telegramId=1", http.StatusNotFound, "User not found"},
		{"/api/dashboard?telegramId=1&today=15.02.2025", http.StatusBadRequest, "YYYY-MM-DD"},
		{"/api/transactions?telegramId=1", http.StatusNotFound, "User not found"},
		{"/api/transactions?telegramId=1&from=yesterday", http.StatusBadRequest, "from must be YYYY-MM-DD"},
		{"/api/transactions/stats?telegramId=1", http.StatusNotFound, "User not found"},
		{"/api/transactions/stats?telegramId=1&to=2025-13-01", http.StatusBadRequest, "to must be YYYY-MM-DD"},
		{"/api/categories?telegramId=1", http.StatusNotFound, "User not found"},
		{"/nowhere", http.StatusNotFound, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			expectError(t, s.do(t, http.MethodGet, tt.target, nil), tt.status, tt.msg)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 100)
	for _, tc := range []struct{ method, target, allow string }{
		{http.MethodPut, "/api/transactions", "GET, POST"},
		{http.MethodPost, "/api/dashboard", "GET"},
		{http.MethodGet, "/api/transactions/abc?telegramId=1", "DELETE"},
		{http.MethodGet, "/api/webhook/telegram", "POST"},
	} {
		rec := s.do(t, tc.method, tc.target, nil)
		expectError(t, rec, http.StatusMethodNotAllowed, "Method not allowed")
		if rec.Header().Get("Allow") != tc.allow {
			t.Errorf("%s %s: Allow=%q", tc.method, tc.target, rec.Header().Get("Allow"))
		}
	}
}

func TestTransactionFlow(t *testing.T) {
	s := newTestServer(t, 100)

	rec := s.do(t, http.MethodPost, "/api/categories", map[string]any{"telegramId": 42, "name": "Еда вне дома", "type": "expense"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	food := decode[categoryJSON](t, rec)
	if food.Type != "EXPENSE" || food.ID == "" {
		t.Fatalf("unexpected category %+v", food)
	}
	rec = s.do(t, http.MethodPost, "/api/categories", map[string]any{"telegramId": "42", "name": "Зарплата", "type": "INCOME"})
	salary := decode[categoryJSON](t, rec)

	validation := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"bad json", "{", http.StatusBadRequest, "Invalid JSON"},
		{"missing telegram id", map[string]any{"amount": 1, "type": "EXPENSE", "categoryId": food.ID}, http.StatusBadRequest, "telegramId is required"},
		{"zero amount", map[string]any{"telegramId": 42, "amount": 0, "type": "EXPENSE", "categoryId": food.ID}, http.StatusBadRequest, "amount must be a positive number"},
		{"negative amount", map[string]any{"telegramId": 42, "amount": -5, "type": "EXPENSE", "categoryId": food.ID}, http.StatusBadRequest, "amount must be a positive number"},
		{"bad type", map[string]any{"telegramId": 42, "amount": 10, "type": "TRANSFER", "categoryId": food.ID}, http.StatusBadRequest, "type must be INCOME or EXPENSE"},
		{"missing category", map[string]any{"telegramId": 42, "amount": 10, "type": "EXPENSE"}, http.StatusBadRequest, "categoryId is required"},
		{"unknown category", map[string]any{"telegramId": 42, "amount": 10, "type": "EXPENSE", "categoryId": "nope"}, http.StatusNotFound, "Category not found"},
		{"foreign category", map[string]any{"telegramId": 7, "amount": 10, "type": "EXPENSE", "categoryId": food.ID}, http.StatusNotFound, "Category not found"},
		{"type mismatch", map[string]any{"telegramId": 42, "amount": 10, "type": "INCOME", "categoryId": food.ID}, http.StatusBadRequest, "does not match"},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, s.do(t, http.MethodPost, "/api/transactions", tt.body), tt.status, tt.msg)
		})
	}

	rec = s.do(t, http.MethodPost, "/api/transactions", `{"telegramId":42,"amount":30000,"type":"EXPENSE","categoryId":"`+food.ID+`","description":"кофе"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	coffee := decode[transactionJSON](t, rec)
	if coffee.Amount.String() != "30000" || coffee.CategoryName != "Еда вне дома" || coffee.Description == nil || *coffee.Description != "кофе" {
		t.Fatalf("unexpected transaction %+v", coffee)
	}
	if _, err := time.Parse(timestampLayout, coffee.CreatedAt); err != nil {
		t.Fatalf("createdAt %q: %v", coffee.CreatedAt, err)
	}

	rec = s.do(t, http.MethodPost, "/api/transactions", map[string]any{"telegramId": 42, "amount": "1000000.50", "type": "INCOME", "categoryId": salary.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income: %d %s", rec.Code, rec.Body.String())
	}
	if pay := decode[transactionJSON](t, rec); pay.Description != nil {
		t.Fatalf("empty description must be null, got %q", *pay.Description)
	}

	list := decode[transactionListJSON](t, s.do(t, http.MethodGet, "/api/transactions?telegramId=42", nil))
	if len(list.Transactions) != 2 || len(list.Categories) != 2 {
		t.Fatalf("unexpected list %+v", list)
	}
	filtered := decode[transactionListJSON](t, s.do(t, http.MethodGet, "/api/transactions?telegramId=42&type=expense&search=%D0%9A%D0%BE%D1%84%D0%B5", nil))
	if len(filtered.Transactions) != 1 || filtered.Transactions[0].ID != coffee.ID {
		t.Fatalf("unexpected filtered list %+v", filtered.Transactions)
	}
	unknownType := s.do(t, http.MethodGet, "/api/transactions?telegramId=42&type=TRANSFER", nil)
	if unknownType.Code != http.StatusOK || len(decode[transactionListJSON](t, unknownType).Transactions) != 2 {
		t.Fatalf("unknown type filter should be ignored: %d %s", unknownType.Code, unknownType.Body.String())
	}

	today := time.Now().UTC().Format("2006-01-02")
	dash := decode[dashboardJSON](t, s.do(t, http.MethodGet, "/api/dashboard?telegramId=42&period=last_7_days&today="+today, nil))
	if dash.Period != "last_7_days" || dash.To != today || len(dash.ByDay) != 7 {
		t.Fatalf("unexpected dashboard window %+v", dash)
	}
	if dash.Summary.TotalExpense.String() != "30000" || dash.Summary.TotalIncome.String() != "1000000.5" || dash.Summary.Balance.String() != "970000.5" {
		t.Fatalf("unexpected summary %+v", dash.Summary)
	}
	if len(dash.ByCategory) != 1 || dash.ByCategory[0].Type != "EXPENSE" {
		t.Fatalf("dashboard categories must be expenses only: %+v", dash.ByCategory)
	}

	stats := decode[statsJSON](t, s.do(t, http.MethodGet, "/api/transactions/stats?telegramId=42&period=this_month&today="+today, nil))
	if stats.Balance.String() != "970000.5" || len(stats.ByCategory) != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	old := decode[statsJSON](t, s.do(t, http.MethodGet, "/api/transactions/stats?telegramId=42&to=2000-01-01", nil))
	if old.TotalExpense.String() != "0" || len(old.ByCategory) != 0 {
		t.Fatalf("expected empty stats, got %+v", old)
	}

	expectError(t, s.do(t, http.MethodDelete, "/api/transactions/"+coffee.ID+"?telegramId=7", nil), http.StatusNotFound, "Transaction not found")
	if rec := s.do(t, http.MethodDelete, "/api/transactions/"+coffee.ID+"?telegramId=42", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	expectError(t, s.do(t, http.MethodDelete, "/api/transactions/"+coffee.ID+"?telegramId=42", nil), http.StatusNotFound, "Transaction not found")

	cats := decode[categoryListJSON](t, s.do(t, http.MethodGet, "/api/categories?telegramId=42", nil))
	if len(cats.Categories) != 2 {
		t.Fatalf("unexpected categories %+v", cats)
	}
	expectError(t, s.do(t, http.MethodPost, "/api/categories", map[string]any{"telegramId": 42, "name": " ", "type": "EXPENSE"}), http.StatusBadRequest, "name is required")
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t, 100)
	update := `{"update_id":7,"message":{"message_id":1,"date":0,"text":"кофе 30000","from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"}}}`

	post := func(secret, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(body))
		if secret != "" {
			req.Header.Set(webhookSecretHeader, secret)
		}
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		return rec
	}

	expectError(t, post("", update), http.StatusUnauthorized, "invalid webhook secret")
	expectError(t, post("wrong", update), http.StatusUnauthorized, "invalid webhook secret")
	expectError(t, post("s3cret", "not json"), http.StatusBadRequest, "Invalid JSON")

	rec := post("s3cret", update)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("webhook: %d %s", rec.Code, rec.Body.String())
	}
	if len(s.bot.updates) != 1 || s.bot.updates[0].Message.Text != "кофе 30000" || s.bot.updates[0].Message.From.ID != 42 {
		t.Fatalf("unexpected updates %+v", s.bot.updates)
	}

	s.bot.err = errors.New("telegram down")
	rec = post("s3cret", update)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), `"ok":false`) {
		t.Fatalf("failing webhook: %d %s", rec.Code, rec.Body.String())
	}
}

type failingSender struct{}

func (failingSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, errors.New("telegram down")
}

func TestWebhookRedeliveryRecordsOnce(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "webhook.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := ledger.NewService(repo)
	srv := NewServer(Options{
		Addr:   ":0",
		Ledger: svc,
		Bot: telegram.NewHandler(svc, failingSender{},
			telegram.WithSeenUpdates(cache.NewLRUCache[bool](10, time.Hour))),
		DB:     repo,
		Logger: applog.New(applog.Config{Output: io.Discard}),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	s := testServer{Server: srv}

	update := `{"update_id":7,"message":{"message_id":1,"date":0,"text":"кофе 30000","from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"}}}`
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/webhook/telegram", update)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodGet, "/api/transactions?telegramId=42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if n := len(decode[transactionListJSON](t, rec).Transactions); n != 1 {
		t.Fatalf("expected 1 transaction, got %d", n)
	}
}

func TestRateLimitMutations(t *testing.T) {
	s := newTestServer(t, 1)
	body := map[string]any{"telegramId": 42, "name": "Прочее", "type": "EXPENSE"}

	if rec := s.do(t, http.MethodPost, "/api/categories", body); rec.Code != http.StatusOK {
		t.Fatalf("first POST: %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/categories", body)
	expectError(t, rec, http.StatusTooManyRequests, "Rate limit exceeded")
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatal("missing Retry-After")
	}

	// reads and the webhook are not limited
	if rec := s.do(t, http.MethodGet, "/api/categories?telegramId=42", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET after limit: %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	req.RemoteAddr = "203.0.113.10:4000"
	req.Header.Set(webhookSecretHeader, "s3cret")
	hook := httptest.NewRecorder()
	s.Handler.ServeHTTP(hook, req)
	if hook.Code != http.StatusOK {
		t.Fatalf("webhook must bypass the limit, got %d", hook.Code)
	}
}
