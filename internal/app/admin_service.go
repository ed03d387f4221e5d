package app

import (
	"context"
	"errors"
	"fmt"

	"course_autoapprove/internal/domain/settings"
)

// Custom application-level errors for the settings service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrInvalidMaxCourses = errors.New("maxcourses must be zero or a positive integer")

// SettingsService lets the configured admin read and edit the approval settings.
type SettingsService struct {
	settingsRepo    settings.Repository
	adminTelegramID int64
}

func NewSettingsService(sr settings.Repository, adminID int64) *SettingsService {
	return &SettingsService{
		settingsRepo:    sr,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether the Telegram user is the configured admin.
func (s *SettingsService) IsAdmin(telegramID int64) bool {
	return telegramID == s.adminTelegramID
}

// ShowSettings returns the currently stored approval configuration.
func (s *SettingsService) ShowSettings(ctx context.Context, performingAdminID int64) (settings.ApprovalConfig, error) {
	if !s.IsAdmin(performingAdminID) {
		return settings.ApprovalConfig{}, ErrAdminNotAuthorized
	}
	cfg, err := s.settingsRepo.LoadApprovalConfig(ctx)
	if err != nil {
		return settings.ApprovalConfig{}, fmt.Errorf("failed to load approval settings: %w", err)
	}
	return cfg, nil
}

// SetMaxCourses stores a new quota. Zero disables automatic approval.
func (s *SettingsService) SetMaxCourses(ctx context.Context, performingAdminID int64, maxCourses int) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	if maxCourses < 0 {
		return ErrInvalidMaxCourses
	}
	if err := s.settingsRepo.SaveMaxCourses(ctx, maxCourses); err != nil {
		return fmt.Errorf("failed to save maxcourses: %w", err)
	}
	return nil
}

// SetReject switches between rejecting denied requests and leaving them pending.
func (s *SettingsService) SetReject(ctx context.Context, performingAdminID int64, reject bool) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	if err := s.settingsRepo.SaveReject(ctx, reject); err != nil {
		return fmt.Errorf("failed to save reject: %w", err)
	}
	return nil
}
