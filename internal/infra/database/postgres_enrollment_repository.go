package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"course_autoapprove/internal/domain/courserequest"

	"github.com/lib/pq"
)

// PostgresEnrollmentRepository answers enrolment, capability and shortname
// questions against the platform tables.
type PostgresEnrollmentRepository struct {
	db     *sql.DB
	tables Tables
}

func NewPostgresEnrollmentRepository(db *sql.DB, tables Tables) *PostgresEnrollmentRepository {
	return &PostgresEnrollmentRepository{db: db, tables: tables}
}

// CoursesForUser lists every course the user is enrolled in, active or
// suspended, excluding the site course.
func (r *PostgresEnrollmentRepository) CoursesForUser(ctx context.Context, userID int64) ([]*courserequest.Course, error) {
	query := fmt.Sprintf(`SELECT DISTINCT c.id, c.shortname, c.fullname, c.category, COALESCE(ctx.id, 0)
               FROM %s c
               JOIN %s e ON e.courseid = c.id
               JOIN %s ue ON ue.enrolid = e.id
               LEFT JOIN %s ctx ON ctx.contextlevel = $3 AND ctx.instanceid = c.id
               WHERE ue.userid = $1 AND c.id <> $2
               ORDER BY c.id`,
		r.tables.Name("course"), r.tables.Name("enrol"), r.tables.Name("user_enrolments"), r.tables.Name("context"))

	rows, err := r.db.QueryContext(ctx, query, userID, siteCourseID, contextLevelCourse)
	if err != nil {
		return nil, fmt.Errorf("error listing courses of user %d: %w", userID, err)
	}
	defer rows.Close()

	courses := make([]*courserequest.Course, 0)
	for rows.Next() {
		c := &courserequest.Course{}
		if err := rows.Scan(&c.ID, &c.Shortname, &c.Fullname, &c.Category, &c.ContextID); err != nil {
			return nil, fmt.Errorf("error scanning course of user %d: %w", userID, err)
		}
		courses = append(courses, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses of user %d: %w", userID, err)
	}
	return courses, nil
}

// HasUpdateCapability reports whether the user may update the course. Site
// admins always may. Otherwise the roles the user holds anywhere on the
// course context path are resolved against the capability definitions and
// overrides on that same path.
func (r *PostgresEnrollmentRepository) HasUpdateCapability(ctx context.Context, userID int64, course *courserequest.Course) (bool, error) {
	pathQuery := fmt.Sprintf(`SELECT c.path,
                   EXISTS (SELECT 1 FROM %s WHERE name = 'siteadmins' AND $2 = ANY(string_to_array(value, ',')))
               FROM %s c
               WHERE c.id = $1`,
		r.tables.Name("config"), r.tables.Name("context"))

	var path string
	var isAdmin bool
	err := r.db.QueryRowContext(ctx, pathQuery, course.ContextID, strconv.FormatInt(userID, 10)).Scan(&path, &isAdmin)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil // no context, nothing can be granted
		}
		return false, fmt.Errorf("error reading context of course %d: %w", course.ID, err)
	}
	if isAdmin {
		return true, nil
	}

	chain, err := parseContextPath(path)
	if err != nil {
		return false, fmt.Errorf("course %d: %w", course.ID, err)
	}

	permQuery := fmt.Sprintf(`SELECT rc.roleid, rc.contextid, rc.permission
               FROM %s rc
               WHERE rc.capability = $3
                 AND rc.contextid = ANY($2)
                 AND rc.roleid IN (SELECT ra.roleid FROM %s ra WHERE ra.userid = $1 AND ra.contextid = ANY($2))`,
		r.tables.Name("role_capabilities"), r.tables.Name("role_assignments"))

	rows, err := r.db.QueryContext(ctx, permQuery, userID, pq.Array(chain), capabilityUpdate)
	if err != nil {
		return false, fmt.Errorf("error checking %s for user %d in course %d: %w", capabilityUpdate, userID, course.ID, err)
	}
	defer rows.Close()

	var perms []rolePermission
	for rows.Next() {
		var p rolePermission
		if err := rows.Scan(&p.RoleID, &p.ContextID, &p.Permission); err != nil {
			return false, fmt.Errorf("error scanning role capability: %w", err)
		}
		perms = append(perms, p)
	}
	if err = rows.Err(); err != nil {
		return false, fmt.Errorf("error iterating role capabilities: %w", err)
	}
	return resolveCapability(chain, perms), nil
}

type rolePermission struct {
	RoleID     int64
	ContextID  int64
	Permission int
}

// resolveCapability applies the platform rules to the permissions of the
// user's roles. chain lists context ids from the system context down to the
// course. Per role the deepest non-inherit permission wins; a prohibit
// anywhere on the chain denies regardless of other roles. Rows outside the
// chain are ignored.
func resolveCapability(chain []int64, perms []rolePermission) bool {
	depth := make(map[int64]int, len(chain))
	for i, id := range chain {
		depth[id] = i
	}

	type resolved struct {
		depth      int
		permission int
	}
	byRole := make(map[int64]resolved)
	for _, p := range perms {
		d, ok := depth[p.ContextID]
		if !ok || p.Permission == capInherit {
			continue
		}
		if p.Permission == capProhibit {
			return false
		}
		if cur, seen := byRole[p.RoleID]; !seen || d > cur.depth {
			byRole[p.RoleID] = resolved{depth: d, permission: p.Permission}
		}
	}
	for _, r := range byRole {
		if r.permission >= capAllow {
			return true
		}
	}
	return false
}

// parseContextPath splits a context path such as "/1/3/110" into its ids.
func parseContextPath(path string) ([]int64, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty context path")
	}
	parts := strings.Split(trimmed, "/")
	chain := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid context path %q: %w", path, err)
		}
		chain = append(chain, id)
	}
	return chain, nil
}

// ShortnameExists reports whether an existing course uses shortname. An empty
// shortname never collides.
func (r *PostgresEnrollmentRepository) ShortnameExists(ctx context.Context, shortname string) (bool, error) {
	if shortname == "" {
		return false, nil
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE shortname = $1)`, r.tables.Name("course"))
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, shortname).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking shortname %q: %w", shortname, err)
	}
	return exists, nil
}
