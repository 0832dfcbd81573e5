// Package telegram turns Telegram updates into ledger operations and replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/cache"
	"github.com/Daler-web-dev/hisbbot/internal/core"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
)

const (
	replyNoAmount   = "Не удалось определить сумму. Напишите, например: кофе 30000 или 50000 такси."
	replySaveFailed = "Не удалось сохранить запись. Попробуйте позже."
	replyNoData     = "Пока нет записей. Напишите, например: кофе 30000."
	replyReportFail = "Не удалось построить отчёт. Попробуйте позже."

	replyHelp = "Привет! Я записываю доходы и расходы.\n\n" +
		"Просто напишите сумму и описание:\n" +
		"• кофе 30000\n" +
		"• 50000 такси\n" +
		"• зарплата 5 000 000\n\n" +
		"Отчёт: /report, /report last_month или /report last_7_days"

	topCategories = 5
)

// Sender delivers replies; *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Ledger is the subset of *ledger.Service the bot uses.
type Ledger interface {
	RecordMessage(ctx context.Context, externalID int64, text string) (ledger.Recorded, bool, error)
	Dashboard(ctx context.Context, externalID int64, period, today string) (core.Dashboard, error)
}

type Handler struct {
	ledger Ledger
	sender Sender
	seen   cache.Cache[bool]
}

type Option func(*Handler)

// WithSeenUpdates remembers the ids of updates whose message was recorded,
// so a redelivered update is not recorded again.
func WithSeenUpdates(c cache.Cache[bool]) Option {
	return func(h *Handler) { h.seen = c }
}

func NewHandler(l Ledger, s Sender, opts ...Option) *Handler {
	h := &Handler{ledger: l, sender: s}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleUpdate processes one update. Updates without a text message from a
// user are ignored. The returned error means the update was not fully handled.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "report":
			return h.handleReport(ctx, msg)
		default:
			return h.reply(msg.Chat.ID, replyHelp)
		}
	}

	key := strconv.Itoa(update.UpdateID)
	if h.seen != nil {
		if _, dup := h.seen.Get(key); dup {
			slog.InfoContext(ctx, "Skipping redelivered update", "update_id", update.UpdateID)
			return nil
		}
	}
	return h.handleText(ctx, msg, text, key)
}

func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message, text, updateKey string) error {
	rec, ok, err := h.ledger.RecordMessage(ctx, msg.From.ID, text)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record message", "telegram_id", msg.From.ID, "error", err)
		if replyErr := h.reply(msg.Chat.ID, replySaveFailed); replyErr != nil {
			return errors.Join(err, replyErr)
		}
		return err
	}
	if !ok {
		return h.reply(msg.Chat.ID, replyNoAmount)
	}

	if h.seen != nil {
		h.seen.Set(updateKey, true)
	}

	slog.InfoContext(ctx, "Transaction recorded from chat",
		"telegram_id", msg.From.ID,
		"transaction_id", rec.Transaction.ID,
		"amount", rec.Parsed.Amount.String(),
		"polarity", rec.Parsed.Polarity,
		"category", rec.Parsed.CategoryName)
	// Stored already: a failed confirmation must not trigger redelivery.
	if err := h.reply(msg.Chat.ID, ConfirmationText(rec.Parsed)); err != nil {
		slog.WarnContext(ctx, "Failed to send confirmation",
			"telegram_id", msg.From.ID,
			"transaction_id", rec.Transaction.ID,
			"error", err)
	}
	return nil
}

func (h *Handler) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	period := strings.TrimSpace(msg.CommandArguments())
	dash, err := h.ledger.Dashboard(ctx, msg.From.ID, period, "")
	if errors.Is(err, ledger.ErrUserNotFound) {
		return h.reply(msg.Chat.ID, replyNoData)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build report", "telegram_id", msg.From.ID, "period", period, "error", err)
		if replyErr := h.reply(msg.Chat.ID, replyReportFail); replyErr != nil {
			return errors.Join(err, replyErr)
		}
		return err
	}
	return h.reply(msg.Chat.ID, ReportText(dash))
}

func (h *Handler) reply(chatID int64, text string) error {
	if _, err := h.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// ConfirmationText is the reply to a recorded chat message.
func ConfirmationText(p core.ParsedTransaction) string {
	return fmt.Sprintf("Записано: %s %s сум — %s", p.Polarity.Label(), p.Amount.String(), p.CategoryName)
}

// ReportText renders a dashboard as a chat message.
func ReportText(d core.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Отчёт за %s — %s\n", d.Interval.From, d.Interval.To)
	fmt.Fprintf(&b, "Доход: %s сум\n", FormatSum(d.Summary.TotalIncome))
	fmt.Fprintf(&b, "Расход: %s сум\n", FormatSum(d.Summary.TotalExpense))
	fmt.Fprintf(&b, "Баланс: %s сум", FormatSum(d.Summary.Balance))

	if len(d.ByCategory) > 0 {
		b.WriteString("\n\nТоп расходов:")
		for i, c := range d.ByCategory {
			if i == topCategories {
				break
			}
			fmt.Fprintf(&b, "\n%d. %s — %s сум", i+1, c.CategoryName, FormatSum(c.Total))
		}
	}
	return b.String()
}
