package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrTelegramChatNotFound = errors.New("user has no linked Telegram chat")

// telegramChatPreference is where the Telegram message processor keeps a user's chat id.
const telegramChatPreference = "message_processor_telegram_chatid"

type PostgresUserRepository struct {
	db     *sql.DB
	tables Tables
}

func NewPostgresUserRepository(db *sql.DB, tables Tables) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, tables: tables}
}

// TelegramChatID returns the chat linked to the user.
func (r *PostgresUserRepository) TelegramChatID(ctx context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE userid = $1 AND name = $2`, r.tables.Name("user_preferences"))
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID, telegramChatPreference).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrTelegramChatNotFound
		}
		return 0, fmt.Errorf("error getting Telegram chat of user %d: %w", userID, err)
	}
	if strings.TrimSpace(value.String) == "" {
		return 0, ErrTelegramChatNotFound
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(value.String), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Telegram chat id %q of user %d: %w", value.String, userID, err)
	}
	return chatID, nil
}
