package app

import (
	"context"
	"errors"
	"fmt"

	"course_autoapprove/internal/domain/courserequest"
	domainTelegram "course_autoapprove/internal/domain/telegram"
	idb "course_autoapprove/internal/infra/database"
	"course_autoapprove/internal/messages"

	"github.com/sirupsen/logrus"
)

// RecipientDirectory resolves platform users to Telegram chats. Users without
// a linked chat yield idb.ErrTelegramChatNotFound.
type RecipientDirectory interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, error)
}

// RequesterNotifier delivers course request decisions to requesters over Telegram.
type RequesterNotifier struct {
	recipients     RecipientDirectory
	telegramClient domainTelegram.Client
	messages       *messages.Catalog
	logger         *logrus.Entry
}

func NewRequesterNotifier(
	recipients RecipientDirectory,
	tc domainTelegram.Client,
	catalog *messages.Catalog,
	logger *logrus.Entry,
) *RequesterNotifier {
	return &RequesterNotifier{
		recipients:     recipients,
		telegramClient: tc,
		messages:       catalog,
		logger:         logger,
	}
}

func (n *RequesterNotifier) NotifyRejected(ctx context.Context, request *courserequest.CourseRequest, message string) error {
	return n.send(ctx, request, message)
}

func (n *RequesterNotifier) NotifyApproved(ctx context.Context, request *courserequest.CourseRequest, course *courserequest.Course) error {
	shortname := request.Shortname
	if course != nil {
		shortname = course.Shortname
	}
	text := n.messages.Get(messages.KeyCourseApproved, map[string]any{
		"fullname":  request.Fullname,
		"shortname": shortname,
	})
	return n.send(ctx, request, text)
}

func (n *RequesterNotifier) send(ctx context.Context, request *courserequest.CourseRequest, text string) error {
	log := n.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"requester":  request.Requester,
	})

	chatID, err := n.recipients.TelegramChatID(ctx, request.Requester)
	if err != nil {
		if errors.Is(err, idb.ErrTelegramChatNotFound) {
			log.Warn("Requester has no linked Telegram chat, notification skipped")
			return nil
		}
		return fmt.Errorf("failed to resolve chat of user %d: %w", request.Requester, err)
	}

	if err := n.telegramClient.SendText(chatID, text); err != nil {
		return fmt.Errorf("failed to send notification to user %d: %w", request.Requester, err)
	}
	log.WithField("chat_id", chatID).Info("Requester notified")
	return nil
}

// LogNotifier only logs notifications. It is used when no Telegram bot is configured.
type LogNotifier struct {
	logger *logrus.Entry
}

func NewLogNotifier(logger *logrus.Entry) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyRejected(_ context.Context, request *courserequest.CourseRequest, message string) error {
	n.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"requester":  request.Requester,
	}).Infof("Rejection notice (not delivered): %s", message)
	return nil
}

func (n *LogNotifier) NotifyApproved(_ context.Context, request *courserequest.CourseRequest, course *courserequest.Course) error {
	entry := n.logger.WithFields(logrus.Fields{
		"request_id": request.ID,
		"requester":  request.Requester,
	})
	if course != nil {
		entry = entry.WithField("course_id", course.ID)
	}
	entry.Info("Approval notice (not delivered)")
	return nil
}
