package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"course_autoapprove/internal/domain/courserequest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestRequestRepository(t *testing.T) (*PostgresRequestRepository, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	repo := NewPostgresRequestRepository(db, NewTables("mdl_"))
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestListPendingIteratesRequests(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	rows := sqlmock.NewRows([]string{"id", "requester", "shortname", "fullname", "summary", "category", "reason"}).
		AddRow(1, 42, "cs101", "Computer Science 101", "Intro", 3, "teaching").
		AddRow(2, 43, "math200", "Mathematics 200", nil, 3, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM mdl_course_request ORDER BY id")).WillReturnRows(rows)

	cursor, err := repo.ListPending(context.Background())
	require.NoError(t, err)

	var got []*courserequest.CourseRequest
	for cursor.Next() {
		got = append(got, cursor.Request())
	}
	require.NoError(t, cursor.Err())
	require.NoError(t, cursor.Close())

	require.Len(t, got, 2)
	assert.Equal(t, &courserequest.CourseRequest{
		ID: 1, Requester: 42, Shortname: "cs101", Fullname: "Computer Science 101",
		Summary: "Intro", Category: 3, Reason: "teaching", Status: courserequest.StatusPending,
	}, got[0])
	assert.Equal(t, "", got[1].Summary)
	assert.True(t, got[1].IsPending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingReportsScanErrors(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	rows := sqlmock.NewRows([]string{"id", "requester", "shortname", "fullname", "summary", "category", "reason"}).
		AddRow("not-a-number", 42, "cs101", "CS", nil, 1, nil)
	mock.ExpectQuery("FROM mdl_course_request").WillReturnRows(rows)

	cursor, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	assert.False(t, cursor.Next())
	assert.Error(t, cursor.Err())
	assert.NoError(t, cursor.Close())
}

func TestListPendingQueryError(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	mock.ExpectQuery("FROM mdl_course_request").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListPending(context.Background())
	assert.Error(t, err)
}

func expectApprovalPrelude(mock sqlmock.Sqlmock, requestID int64) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM mdl_course_request WHERE id = $1 FOR UPDATE")).
		WithArgs(requestID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(requestID))
	mock.ExpectQuery(regexp.QuoteMeta("FROM mdl_course_categories WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM mdl_config WHERE name = 'creatornewroleid'")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
}

func TestApproveCreatesCourseAndDeletesRequest(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	req := &courserequest.CourseRequest{ID: 7, Requester: 42, Shortname: "cs101", Fullname: "Computer Science 101", Category: 3}
	now := fixedNow.Unix()

	expectApprovalPrelude(mock, 7)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mdl_course (category, fullname, shortname")).
		WithArgs(int64(3), "Computer Science 101", "cs101", "", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(55))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mdl_context (contextlevel, instanceid)")).
		WithArgs(int64(contextLevelCourse), int64(55)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(555))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO mdl_enrol")).
		WithArgs(int64(55), int64(defaultCreatorRoleID), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mdl_user_enrolments")).
		WithArgs(int64(9), int64(42), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mdl_role_assignments")).
		WithArgs(int64(defaultCreatorRoleID), int64(555), int64(42), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mdl_course_request WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	course, err := repo.Approve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &courserequest.Course{ID: 55, Shortname: "cs101", Fullname: "Computer Science 101", Category: 3, ContextID: 555}, course)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveShortnameTaken(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	req := &courserequest.CourseRequest{ID: 7, Requester: 42, Shortname: "cs101", Category: 3}

	expectApprovalPrelude(mock, 7)
	mock.ExpectQuery("INSERT INTO mdl_course").WillReturnError(&pq.Error{Code: pgUniqueViolation})
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), req)
	assert.ErrorIs(t, err, ErrShortnameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRequestAlreadyGone(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), &courserequest.CourseRequest{ID: 7})
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveUsesConfiguredCreatorRole(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("mdl_course_categories").WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery("creatornewroleid").WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("bogus"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), &courserequest.CourseRequest{ID: 7})
	assert.ErrorContains(t, err, "invalid creatornewroleid")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectDeletesRequest(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mdl_course_request WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reject(context.Background(), &courserequest.CourseRequest{ID: 7}, "msg"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectMissingRequest(t *testing.T) {
	repo, mock := newTestRequestRepository(t)
	mock.ExpectExec("DELETE FROM mdl_course_request").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), &courserequest.CourseRequest{ID: 7}, "msg")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
