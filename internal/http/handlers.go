package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
	applog "github.com/Daler-web-dev/hisbbot/internal/log"
)

// requestTimeout bounds the storage work of a single API request.
const requestTimeout = 10 * time.Second

// webhookSecretHeader carries the secret registered with setWebhook.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// handleDashboard serves GET /api/dashboard?telegramId&period&today.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	query := r.URL.Query()
	externalID, err := ParseTelegramID(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	period := core.ParsePeriod(query.Get("period"))
	ctx, cancel := withTimeout(r)
	defer cancel()

	dash, err := s.ledger.Dashboard(ctx, externalID, string(period), query.Get("today"))
	if err != nil {
		ServiceError(ctx, err, applog.OpReport).Write(w)
		return
	}
	NewJSONResponse().Body(toDashboardJSON(period, dash)).Write(w)
}

// handleTransactions serves GET and POST /api/transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	externalID, err := ParseTelegramID(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	q := ledger.ListQuery{
		Type:       strings.TrimSpace(query.Get("type")),
		CategoryID: query.Get("categoryId"),
		Search:     sanitizeInput(query.Get("search")),
		Limit:      ParseLimit(query),
	}
	if q.From, err = ParseOptionalDate(query, "from"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if q.To, err = ParseOptionalDate(query, "to"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	page, err := s.ledger.ListTransactions(ctx, externalID, q)
	if err != nil {
		ServiceError(ctx, err, applog.OpList).Write(w)
		return
	}

	out := transactionListJSON{
		Transactions: make([]transactionJSON, 0, len(page.Transactions)),
		Categories:   toCategoryList(page.Categories),
	}
	for _, t := range page.Transactions {
		out.Transactions = append(out.Transactions, toTransactionJSON(t))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("Invalid JSON").Write(w)
		return
	}
	externalID, err := parseExternalID(req.TelegramID.String())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		BadRequestError("categoryId is required").Write(w)
		return
	}

	in := ledger.CreateTransactionInput{
		ExternalID: externalID,
		Amount:     amount,
		Type:       strings.TrimSpace(req.Type),
		CategoryID: req.CategoryID,
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	tx, err := s.ledger.CreateTransaction(ctx, in)
	if err != nil {
		ServiceError(ctx, err, applog.OpCreate).Write(w)
		return
	}
	applog.FromContext(r.Context()).InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithTelegramID(externalID).
			WithTransaction(tx.ID, tx.Amount.String(), string(tx.Polarity), tx.CategoryName).
			ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionJSON(tx)).Write(w)
}

// handleTransaction serves DELETE /api/transactions/{id}?telegramId.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		MethodNotAllowedError(http.MethodDelete).Write(w)
		return
	}
	externalID, err := ParseTelegramID(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		NotFoundError("Transaction not found").Write(w)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := s.ledger.DeleteTransaction(ctx, externalID, id); err != nil {
		ServiceError(ctx, err, applog.OpDelete).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats serves GET /api/transactions/stats?telegramId&from&to. Without
// from and to, a period (and optional today) selects the window; with
// neither, all transactions are counted.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	query := r.URL.Query()
	externalID, err := ParseTelegramID(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var q ledger.StatsQuery
	if q.From, err = ParseOptionalDate(query, "from"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if q.To, err = ParseOptionalDate(query, "to"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if q.From == nil && q.To == nil && query.Get("period") != "" {
		interval, err := core.ResolveDateRangeString(query.Get("period"), query.Get("today"), s.now)
		if err != nil {
			BadRequestError("today must be YYYY-MM-DD").Write(w)
			return
		}
		q.From, q.To = &interval.From, &interval.To
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	stats, err := s.ledger.Stats(ctx, externalID, q)
	if err != nil {
		ServiceError(ctx, err, applog.OpReport).Write(w)
		return
	}
	NewJSONResponse().Body(toStatsJSON(stats)).Write(w)
}

// handleCategories serves GET and POST /api/categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		externalID, err := ParseTelegramID(r.URL.Query())
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		ctx, cancel := withTimeout(r)
		defer cancel()

		cats, err := s.ledger.Categories(ctx, externalID)
		if err != nil {
			ServiceError(ctx, err, applog.OpList).Write(w)
			return
		}
		NewJSONResponse().Body(categoryListJSON{Categories: toCategoryList(cats)}).Write(w)

	case http.MethodPost:
		var req createCategoryRequest
		if err := DecodeJSON(w, r, &req); err != nil {
			BadRequestError("Invalid JSON").Write(w)
			return
		}
		externalID, err := parseExternalID(req.TelegramID.String())
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		ctx, cancel := withTimeout(r)
		defer cancel()

		cat, err := s.ledger.EnsureCategory(ctx, externalID, sanitizeInput(req.Name), strings.TrimSpace(req.Type))
		if err != nil {
			ServiceError(ctx, err, applog.OpCreate).Write(w)
			return
		}
		NewJSONResponse().Body(toCategoryJSON(cat)).Write(w)

	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleWebhook serves POST /api/webhook/telegram.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}
	if s.webhookSecret != "" && r.Header.Get(webhookSecretHeader) != s.webhookSecret {
		ErrorResponse(http.StatusUnauthorized, "invalid webhook secret").Write(w)
		return
	}

	var update tgbotapi.Update
	if err := DecodeJSON(w, r, &update); err != nil {
		BadRequestError("Invalid JSON").Write(w)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentTelegram)
	if err := s.bot.HandleUpdate(ctx, update); err != nil {
		logger.LogError(ctx, "Webhook update failed", err, applog.OpRecord,
			applog.NewFields().With("update_id", update.UpdateID))
		NewJSONResponse().Status(http.StatusInternalServerError).Body(map[string]bool{"ok": false}).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]bool{"ok": true}).Write(w)
}
