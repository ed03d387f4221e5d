// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"course_autoapprove/internal/infra/config"
	"course_autoapprove/internal/messages"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	catalog *messages.Catalog,
	baseLogger *logrus.Entry,
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")
		return c.Send(startText(cfg.AdminTelegramID, catalog, c.Sender()))
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /help command")
		if c.Sender().ID == cfg.AdminTelegramID {
			return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send(userHelpText(c.Chat().ID))
	})
}

func startText(adminID int64, catalog *messages.Catalog, sender *telebot.User) string {
	name := catalog.Get(messages.KeyPluginName, nil)
	if sender.ID == adminID {
		return fmt.Sprintf("Hello, administrator %s! %s is running. Use /help for the list of commands.", sender.FirstName, name)
	}
	return fmt.Sprintf("Hello, %s! I send you the outcome of your course requests. Use /help to learn how to link this chat.", sender.FirstName)
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/settings`\n - Show the approval settings.\n\n")
	helpText.WriteString("`/set_maxcourses <n>`\n - Approve only when the requester teaches fewer than n courses. 0 disables automatic approval.\n\n")
	helpText.WriteString("`/set_reject <on|off>`\n - Reject denied requests, or leave them pending.\n\n")
	helpText.WriteString("`/run_now`\n - Process pending course requests now.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}

func userHelpText(chatID int64) string {
	return fmt.Sprintf("Your chat id is %d. Save it as your Telegram chat id in your profile messaging preferences to receive the outcome of your course requests here.", chatID)
}
