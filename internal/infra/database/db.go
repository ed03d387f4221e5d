package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Platform constants shared by the repositories.
const (
	siteCourseID         = 1  // the front page course, never counted as a teaching course
	contextLevelCourse   = 50 // CONTEXT_COURSE
	capInherit           = 0
	capAllow             = 1
	capPrevent           = -1
	capProhibit          = -1000
	capabilityUpdate     = "moodle/course:update"
	defaultCreatorRoleID = 3 // editingteacher
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Tables prefixes platform table names, e.g. "course" -> "mdl_course".
type Tables struct {
	prefix string
}

func NewTables(prefix string) Tables {
	return Tables{prefix: prefix}
}

func (t Tables) Name(table string) string {
	return t.prefix + table
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
