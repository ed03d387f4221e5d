package telegram

// Client sends plain text messages to a Telegram chat. Requester notifications
// only depend on this interface, not on the bot library.
type Client interface {
	SendText(chatID int64, text string) error
}
