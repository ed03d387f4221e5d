package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"course_autoapprove/internal/domain/courserequest"
)

// Custom errors
var ErrRequestNotFound = errors.New("course request not found")
var ErrShortnameTaken = errors.New("course shortname is already taken")

type PostgresRequestRepository struct {
	db     *sql.DB
	tables Tables
	now    func() time.Time
}

func NewPostgresRequestRepository(db *sql.DB, tables Tables) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: db, tables: tables, now: time.Now}
}

// ListPending returns a cursor over all stored requests in id order.
func (r *PostgresRequestRepository) ListPending(ctx context.Context) (courserequest.PendingCursor, error) {
	query := fmt.Sprintf(`SELECT id, requester, shortname, fullname, summary, category, reason
               FROM %s ORDER BY id`, r.tables.Name("course_request"))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying pending course requests: %w", err)
	}
	return &rowsCursor{rows: rows}, nil
}

// rowsCursor adapts *sql.Rows to courserequest.PendingCursor.
type rowsCursor struct {
	rows    *sql.Rows
	current *courserequest.CourseRequest
	err     error
}

func (c *rowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var summary, reason sql.NullString
	req := &courserequest.CourseRequest{Status: courserequest.StatusPending}
	if err := c.rows.Scan(&req.ID, &req.Requester, &req.Shortname, &req.Fullname, &summary, &req.Category, &reason); err != nil {
		c.err = fmt.Errorf("error scanning course request row: %w", err)
		return false
	}
	req.Summary = summary.String
	req.Reason = reason.String
	c.current = req
	return true
}

func (c *rowsCursor) Request() *courserequest.CourseRequest {
	return c.current
}

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return fmt.Errorf("error iterating course request rows: %w", err)
	}
	return nil
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}

// Approve creates the requested course, enrols the requester with the course
// creator role and removes the request, all in one transaction.
func (r *PostgresRequestRepository) Approve(ctx context.Context, request *courserequest.CourseRequest) (*courserequest.Course, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for approval: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	var lockedID int64
	lockQuery := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, r.tables.Name("course_request"))
	if err := txn.QueryRowContext(ctx, lockQuery, request.ID).Scan(&lockedID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("error locking course request %d: %w", request.ID, err)
	}

	categoryID, err := r.resolveCategory(ctx, txn, request.Category)
	if err != nil {
		return nil, err
	}
	roleID, err := r.creatorRoleID(ctx, txn)
	if err != nil {
		return nil, err
	}

	now := r.now().Unix()
	course := &courserequest.Course{
		Shortname: request.Shortname,
		Fullname:  request.Fullname,
		Category:  categoryID,
	}

	courseQuery := fmt.Sprintf(`INSERT INTO %s (category, fullname, shortname, summary, summaryformat, visible, startdate, timecreated, timemodified)
               VALUES ($1, $2, $3, $4, 1, 1, $5, $5, $5)
               RETURNING id`, r.tables.Name("course"))
	err = txn.QueryRowContext(ctx, courseQuery, categoryID, request.Fullname, request.Shortname, request.Summary, now).Scan(&course.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("error creating course %q: %w", request.Shortname, ErrShortnameTaken)
		}
		return nil, fmt.Errorf("error creating course %q: %w", request.Shortname, err)
	}

	contextQuery := fmt.Sprintf(`INSERT INTO %s (contextlevel, instanceid) VALUES ($1, $2) RETURNING id`, r.tables.Name("context"))
	if err := txn.QueryRowContext(ctx, contextQuery, contextLevelCourse, course.ID).Scan(&course.ContextID); err != nil {
		return nil, fmt.Errorf("error creating context for course %d: %w", course.ID, err)
	}

	var enrolID int64
	enrolQuery := fmt.Sprintf(`INSERT INTO %s (enrol, status, courseid, roleid, timecreated, timemodified)
               VALUES ('manual', 0, $1, $2, $3, $3)
               RETURNING id`, r.tables.Name("enrol"))
	if err := txn.QueryRowContext(ctx, enrolQuery, course.ID, roleID, now).Scan(&enrolID); err != nil {
		return nil, fmt.Errorf("error creating enrolment instance for course %d: %w", course.ID, err)
	}

	userEnrolQuery := fmt.Sprintf(`INSERT INTO %s (status, enrolid, userid, timestart, timecreated, timemodified)
               VALUES (0, $1, $2, $3, $3, $3)`, r.tables.Name("user_enrolments"))
	if _, err := txn.ExecContext(ctx, userEnrolQuery, enrolID, request.Requester, now); err != nil {
		return nil, fmt.Errorf("error enrolling user %d in course %d: %w", request.Requester, course.ID, err)
	}

	roleQuery := fmt.Sprintf(`INSERT INTO %s (roleid, contextid, userid, timemodified)
               VALUES ($1, $2, $3, $4)`, r.tables.Name("role_assignments"))
	if _, err := txn.ExecContext(ctx, roleQuery, roleID, course.ContextID, request.Requester, now); err != nil {
		return nil, fmt.Errorf("error assigning role %d to user %d in course %d: %w", roleID, request.Requester, course.ID, err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Name("course_request"))
	if _, err := txn.ExecContext(ctx, deleteQuery, request.ID); err != nil {
		return nil, fmt.Errorf("error deleting approved course request %d: %w", request.ID, err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval of course request %d: %w", request.ID, err)
	}
	return course, nil
}

// resolveCategory returns the requested category when it exists, otherwise
// the configured default request category, otherwise the first category.
func (r *PostgresRequestRepository) resolveCategory(ctx context.Context, txn *sql.Tx, requested int64) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(
                   (SELECT id FROM %[1]s WHERE id = $1),
                   (SELECT cc.id FROM %[1]s cc JOIN %[2]s cfg ON cfg.name = 'defaultrequestcategory' AND cfg.value = CAST(cc.id AS TEXT)),
                   (SELECT MIN(id) FROM %[1]s))`,
		r.tables.Name("course_categories"), r.tables.Name("config"))
	var categoryID sql.NullInt64
	if err := txn.QueryRowContext(ctx, query, requested).Scan(&categoryID); err != nil {
		return 0, fmt.Errorf("error resolving course category %d: %w", requested, err)
	}
	if !categoryID.Valid {
		return 0, fmt.Errorf("no course category available for course request")
	}
	return categoryID.Int64, nil
}

// creatorRoleID returns the role given to requesters in their new course.
func (r *PostgresRequestRepository) creatorRoleID(ctx context.Context, txn *sql.Tx) (int64, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = 'creatornewroleid'`, r.tables.Name("config"))
	var value string
	if err := txn.QueryRowContext(ctx, query).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return defaultCreatorRoleID, nil
		}
		return 0, fmt.Errorf("error reading creatornewroleid: %w", err)
	}
	roleID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid creatornewroleid %q: %w", value, err)
	}
	return roleID, nil
}

// Reject removes the request. Delivering message to the requester is left to
// the caller.
func (r *PostgresRequestRepository) Reject(ctx context.Context, request *courserequest.CourseRequest, _ string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Name("course_request"))
	res, err := r.db.ExecContext(ctx, query, request.ID)
	if err != nil {
		return fmt.Errorf("error deleting rejected course request %d: %w", request.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for course request %d: %w", request.ID, err)
	}
	if n == 0 {
		return ErrRequestNotFound
	}
	return nil
}
