// Command set-webhook registers the hisbbot webhook URL with Telegram.
package main

import (
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/cli"
	"github.com/Daler-web-dev/hisbbot/internal/config"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg := config.Load()
	cli.Require(logger, cfg.RequireWebhook)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	endpoint := cfg.WebhookEndpoint()
	resp, err := bot.MakeRequest("setWebhook", webhookParams(endpoint, cfg.WebhookSecret))
	if err != nil {
		logger.Error("Failed to set webhook", "error", err, "url", endpoint)
		os.Exit(1)
	}
	if !resp.Ok {
		logger.Error("Telegram rejected webhook", "description", resp.Description, "url", endpoint)
		os.Exit(1)
	}
	logger.Info("Webhook set", "url", endpoint, "bot", bot.Self.UserName)
}

// webhookParams builds the setWebhook parameters; an empty secret is omitted.
func webhookParams(url, secret string) tgbotapi.Params {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message"]`
	return params
}
