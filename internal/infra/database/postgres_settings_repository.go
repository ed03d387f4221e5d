package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"course_autoapprove/internal/domain/settings"
)

var ErrInvalidSetting = errors.New("invalid stored setting")

const (
	settingMaxCourses     = "maxcourses"
	settingReject         = "reject"
	settingCourseRequests = "enablecourserequests"
)

type PostgresSettingsRepository struct {
	db     *sql.DB
	tables Tables
}

func NewPostgresSettingsRepository(db *sql.DB, tables Tables) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db, tables: tables}
}

// LoadApprovalConfig reads the global course request flag and the plugin
// settings. Settings that were never saved take their defaults.
func (r *PostgresSettingsRepository) LoadApprovalConfig(ctx context.Context) (settings.ApprovalConfig, error) {
	cfg := settings.Default()

	enabled, err := r.coreSetting(ctx, settingCourseRequests)
	if err != nil {
		return cfg, err
	}
	cfg.RequestsEnabled = truthy(enabled)

	query := fmt.Sprintf(`SELECT name, value FROM %s WHERE plugin = $1`, r.tables.Name("config_plugins"))
	rows, err := r.db.QueryContext(ctx, query, settings.Plugin)
	if err != nil {
		return cfg, fmt.Errorf("error querying %s settings: %w", settings.Plugin, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return cfg, fmt.Errorf("error scanning %s setting: %w", settings.Plugin, err)
		}
		switch name {
		case settingMaxCourses:
			n, err := strconv.Atoi(strings.TrimSpace(value.String))
			if err != nil || n < 0 {
				return cfg, fmt.Errorf("%w: %s/%s = %q", ErrInvalidSetting, settings.Plugin, name, value.String)
			}
			cfg.MaxCourses = n
		case settingReject:
			cfg.Reject = truthy(value.String)
		}
	}
	if err = rows.Err(); err != nil {
		return cfg, fmt.Errorf("error iterating %s settings: %w", settings.Plugin, err)
	}
	return cfg, nil
}

func (r *PostgresSettingsRepository) coreSetting(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, r.tables.Name("config"))
	var value sql.NullString
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("error reading core setting %s: %w", name, err)
	}
	return value.String, nil
}

func (r *PostgresSettingsRepository) SaveMaxCourses(ctx context.Context, maxCourses int) error {
	if maxCourses < 0 {
		return fmt.Errorf("%w: maxcourses must not be negative", ErrInvalidSetting)
	}
	return r.savePluginSetting(ctx, settingMaxCourses, strconv.Itoa(maxCourses))
}

func (r *PostgresSettingsRepository) SaveReject(ctx context.Context, reject bool) error {
	value := "0"
	if reject {
		value = "1"
	}
	return r.savePluginSetting(ctx, settingReject, value)
}

func (r *PostgresSettingsRepository) savePluginSetting(ctx context.Context, name, value string) error {
	query := fmt.Sprintf(`INSERT INTO %s (plugin, name, value) VALUES ($1, $2, $3)
               ON CONFLICT (plugin, name) DO UPDATE SET value = EXCLUDED.value`, r.tables.Name("config_plugins"))
	if _, err := r.db.ExecContext(ctx, query, settings.Plugin, name, value); err != nil {
		return fmt.Errorf("error saving %s/%s: %w", settings.Plugin, name, err)
	}
	return nil
}

// truthy follows the platform convention: empty and "0" are false.
func truthy(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && v != "0"
}
