// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// sender is the part of *telebot.Bot the adapter needs.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot sender
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendText sends a plain text message to the chat.
func (tba *TelebotAdapter) SendText(chatID int64, text string) error {
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
