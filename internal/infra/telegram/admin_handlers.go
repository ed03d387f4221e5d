package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"course_autoapprove/internal/app"
	"course_autoapprove/internal/domain/settings"
	"course_autoapprove/internal/infra/scheduler"
	"course_autoapprove/internal/messages"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	callbackRejectOn  = "reject_on"
	callbackRejectOff = "reject_off"

	msgUnauthorized = "Error: you are not allowed to run this command."
)

// Runner triggers an immediate approval pass.
type Runner interface {
	RunOnce(ctx context.Context) (*app.Report, error)
}

// AdminHandlers implements the admin chat commands for the approval settings.
type AdminHandlers struct {
	settingsService *app.SettingsService
	runner          Runner
	messages        *messages.Catalog
	logger          *logrus.Entry
}

func NewAdminHandlers(settingsService *app.SettingsService, runner Runner, catalog *messages.Catalog, logger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{
		settingsService: settingsService,
		runner:          runner,
		messages:        catalog,
		logger:          logger,
	}
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/settings", func(c telebot.Context) error {
		text, markup := h.showSettings(ctx, c.Sender().ID)
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	})

	b.Handle("/set_maxcourses", func(c telebot.Context) error {
		return c.Send(h.setMaxCourses(ctx, c.Sender().ID, c.Args()))
	})

	b.Handle("/set_reject", func(c telebot.Context) error {
		return c.Send(h.setReject(ctx, c.Sender().ID, c.Args()))
	})

	b.Handle("/run_now", func(c telebot.Context) error {
		return c.Send(h.runNow(ctx, c.Sender().ID))
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		answer, ok := h.toggleReject(ctx, c.Sender().ID, data)
		if !ok {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: answer})
	})
}

func (h *AdminHandlers) handlerLogger(handler string, senderID int64) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": senderID,
	})
}

func (h *AdminHandlers) showSettings(ctx context.Context, senderID int64) (string, *telebot.ReplyMarkup) {
	log := h.handlerLogger("/settings", senderID)
	log.Info("Command received")

	cfg, err := h.settingsService.ShowSettings(ctx, senderID)
	if err != nil {
		return h.failure(log, err, "loading settings"), nil
	}
	return h.formatSettings(cfg), rejectToggleMarkup()
}

func (h *AdminHandlers) formatSettings(cfg settings.ApprovalConfig) string {
	var text strings.Builder
	text.WriteString(h.messages.Get(messages.KeyPluginName, nil))
	text.WriteString("\n\n")
	if !cfg.RequestsEnabled {
		text.WriteString("Course requests are disabled on the site, nothing will be processed.\n\n")
	}
	fmt.Fprintf(&text, "%s: %d\n%s\n\n", h.messages.Get(messages.KeyMaxCourses, nil), cfg.MaxCourses, h.messages.Get(messages.KeyMaxCoursesDesc, nil))
	fmt.Fprintf(&text, "%s: %s\n%s", h.messages.Get(messages.KeyReject, nil), onOff(cfg.Reject), h.messages.Get(messages.KeyRejectDesc, nil))
	return text.String()
}

func (h *AdminHandlers) setMaxCourses(ctx context.Context, senderID int64, args []string) string {
	log := h.handlerLogger("/set_maxcourses", senderID)
	log.Info("Command received")

	if len(args) != 1 {
		log.WithField("args_count", len(args)).Warn("Invalid command format")
		return "Invalid command format. Use: /set_maxcourses <n>"
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		log.WithField("arg", args[0]).Warn("Invalid number")
		return "Error: maxcourses must be a whole number."
	}

	if err := h.settingsService.SetMaxCourses(ctx, senderID, n); err != nil {
		return h.failure(log, err, "saving maxcourses")
	}
	log.WithField("maxcourses", n).Info("maxcourses updated")
	if n == 0 {
		return "maxcourses set to 0. Automatic approval is disabled."
	}
	return fmt.Sprintf("maxcourses set to %d.", n)
}

func (h *AdminHandlers) setReject(ctx context.Context, senderID int64, args []string) string {
	log := h.handlerLogger("/set_reject", senderID)
	log.Info("Command received")

	if len(args) != 1 {
		log.WithField("args_count", len(args)).Warn("Invalid command format")
		return "Invalid command format. Use: /set_reject <on|off>"
	}
	var reject bool
	switch strings.ToLower(args[0]) {
	case "on", "yes", "1", "true":
		reject = true
	case "off", "no", "0", "false":
		reject = false
	default:
		return "Error: use on or off."
	}
	return h.saveReject(ctx, log, senderID, reject)
}

// toggleReject handles the inline reject buttons. ok is false for callback
// data that does not belong to these buttons.
func (h *AdminHandlers) toggleReject(ctx context.Context, senderID int64, data string) (answer string, ok bool) {
	var reject bool
	switch strings.TrimSpace(data) {
	case callbackRejectOn:
		reject = true
	case callbackRejectOff:
		reject = false
	default:
		return "", false
	}
	log := h.handlerLogger("reject_toggle", senderID)
	log.Info("Callback received")
	return h.saveReject(ctx, log, senderID, reject), true
}

func (h *AdminHandlers) saveReject(ctx context.Context, log *logrus.Entry, senderID int64, reject bool) string {
	if err := h.settingsService.SetReject(ctx, senderID, reject); err != nil {
		return h.failure(log, err, "saving reject")
	}
	log.WithField("reject", reject).Info("reject updated")
	if reject {
		return "Denied requests will now be rejected and the requester notified."
	}
	return "Denied requests will now stay pending for manual review."
}

func (h *AdminHandlers) runNow(ctx context.Context, senderID int64) string {
	log := h.handlerLogger("/run_now", senderID)
	log.Info("Command received")

	if !h.settingsService.IsAdmin(senderID) {
		log.Warn("Unauthorized access attempt")
		return msgUnauthorized
	}
	report, err := h.runner.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			log.Warn("Run already in progress")
			return "An approval run is already in progress, try again later."
		}
		log.WithError(err).Error("Manual approval run failed")
		if report != nil {
			return fmt.Sprintf("Approval run failed: %v\nPartial %s", err, report.Summary())
		}
		return fmt.Sprintf("Approval run failed: %v", err)
	}
	return report.Summary()
}

func (h *AdminHandlers) failure(log *logrus.Entry, err error, action string) string {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Unauthorized access attempt")
		return msgUnauthorized
	case errors.Is(err, app.ErrInvalidMaxCourses):
		logWithError.Warn("Invalid maxcourses")
		return "Error: maxcourses must be zero or a positive number."
	default:
		logWithError.Errorf("Failed %s", action)
		return fmt.Sprintf("An error occurred while %s: %s", action, err.Error())
	}
}

func rejectToggleMarkup() *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{
			{Text: "Reject: on", Data: callbackRejectOn},
			{Text: "Reject: off", Data: callbackRejectOff},
		}},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
