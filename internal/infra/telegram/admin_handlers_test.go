package telegram

import (
	"context"
	"errors"
	"testing"

	"course_autoapprove/internal/app"
	"course_autoapprove/internal/domain/settings"
	"course_autoapprove/internal/infra/scheduler"
	"course_autoapprove/internal/messages"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

const adminID = int64(777)

type stubSettings struct {
	cfg settings.ApprovalConfig
}

func (s *stubSettings) LoadApprovalConfig(context.Context) (settings.ApprovalConfig, error) {
	return s.cfg, nil
}

func (s *stubSettings) SaveMaxCourses(_ context.Context, n int) error {
	s.cfg.MaxCourses = n
	return nil
}

func (s *stubSettings) SaveReject(_ context.Context, reject bool) error {
	s.cfg.Reject = reject
	return nil
}

type stubRunner struct {
	calls  int
	report *app.Report
	err    error
}

func (r *stubRunner) RunOnce(context.Context) (*app.Report, error) {
	r.calls++
	return r.report, r.err
}

func newTestHandlers() (*AdminHandlers, *stubSettings, *stubRunner) {
	repo := &stubSettings{cfg: settings.ApprovalConfig{RequestsEnabled: true, MaxCourses: 1, Reject: true}}
	runner := &stubRunner{report: &app.Report{RunID: uuid.New()}}
	logger, _ := test.NewNullLogger()
	h := NewAdminHandlers(app.NewSettingsService(repo, adminID), runner, messages.Default(), logrus.NewEntry(logger))
	return h, repo, runner
}

func TestShowSettings(t *testing.T) {
	h, _, _ := newTestHandlers()
	ctx := context.Background()

	text, markup := h.showSettings(ctx, adminID)
	assert.Contains(t, text, "Maximum courses: 1")
	assert.Contains(t, text, "Reject denied requests: on")
	require.NotNil(t, markup)
	assert.Equal(t, callbackRejectOn, markup.InlineKeyboard[0][0].Data)

	text, markup = h.showSettings(ctx, 1)
	assert.Equal(t, msgUnauthorized, text)
	assert.Nil(t, markup)
}

func TestSetMaxCourses(t *testing.T) {
	h, repo, _ := newTestHandlers()
	ctx := context.Background()

	assert.Equal(t, "maxcourses set to 3.", h.setMaxCourses(ctx, adminID, []string{"3"}))
	assert.Equal(t, 3, repo.cfg.MaxCourses)

	assert.Contains(t, h.setMaxCourses(ctx, adminID, []string{"0"}), "disabled")
	assert.Equal(t, 0, repo.cfg.MaxCourses)

	assert.Contains(t, h.setMaxCourses(ctx, adminID, nil), "Invalid command format")
	assert.Contains(t, h.setMaxCourses(ctx, adminID, []string{"two"}), "whole number")
	assert.Contains(t, h.setMaxCourses(ctx, adminID, []string{"-1"}), "zero or a positive")
	assert.Equal(t, msgUnauthorized, h.setMaxCourses(ctx, 1, []string{"5"}))
	assert.Equal(t, 0, repo.cfg.MaxCourses)
}

func TestSetRejectAndToggle(t *testing.T) {
	h, repo, _ := newTestHandlers()
	ctx := context.Background()

	assert.Contains(t, h.setReject(ctx, adminID, []string{"off"}), "stay pending")
	assert.False(t, repo.cfg.Reject)
	assert.Contains(t, h.setReject(ctx, adminID, []string{"maybe"}), "use on or off")

	answer, ok := h.toggleReject(ctx, adminID, callbackRejectOn)
	assert.True(t, ok)
	assert.Contains(t, answer, "rejected")
	assert.True(t, repo.cfg.Reject)

	answer, ok = h.toggleReject(ctx, 1, callbackRejectOff)
	assert.True(t, ok)
	assert.Equal(t, msgUnauthorized, answer)
	assert.True(t, repo.cfg.Reject)

	_, ok = h.toggleReject(ctx, adminID, "something_else")
	assert.False(t, ok)
}

func TestRunNow(t *testing.T) {
	h, _, runner := newTestHandlers()
	ctx := context.Background()

	assert.Equal(t, msgUnauthorized, h.runNow(ctx, 1))
	assert.Zero(t, runner.calls)

	assert.Contains(t, h.runNow(ctx, adminID), "processed 0 request(s)")
	assert.Equal(t, 1, runner.calls)

	runner.err = scheduler.ErrAlreadyRunning
	assert.Contains(t, h.runNow(ctx, adminID), "already in progress")

	runner.err = errors.New("db down")
	assert.Contains(t, h.runNow(ctx, adminID), "Partial run")
}

func TestStartAndHelpTexts(t *testing.T) {
	catalog := messages.Default()
	assert.Contains(t, startText(adminID, catalog, &telebot.User{ID: adminID, FirstName: "Ann"}), "administrator Ann")
	assert.Contains(t, startText(adminID, catalog, &telebot.User{ID: 5, FirstName: "Bo"}), "Hello, Bo!")
	assert.Contains(t, adminHelpText(), "/set_maxcourses")
	assert.Contains(t, userHelpText(12345), "12345")
}

type recordingSender struct {
	to   telebot.Recipient
	what interface{}
}

func (s *recordingSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	s.to, s.what = to, what
	return &telebot.Message{}, nil
}

func TestTelebotAdapterSendText(t *testing.T) {
	rec := &recordingSender{}
	adapter := &TelebotAdapter{bot: rec}

	require.NoError(t, adapter.SendText(42, "hello"))
	assert.Equal(t, "42", rec.to.Recipient())
	assert.Equal(t, "hello", rec.what)
}
