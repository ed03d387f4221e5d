package app

import (
	"context"
	"errors"

	"course_autoapprove/internal/domain/courserequest"
	"course_autoapprove/internal/domain/settings"
)

// memorySite is an in-memory platform: requests, courses, enrolments and
// teacher roles. It implements every collaborator the approval job needs.
type memorySite struct {
	pending   []*courserequest.CourseRequest
	courses   map[int64]*courserequest.Course
	enrolled  map[int64][]int64        // user -> course ids
	teacherIn map[int64]map[int64]bool // user -> course -> can update
	nextID    int64

	approved []*courserequest.CourseRequest
	rejected map[int64]string // request id -> message

	cursorsOpened int
	cursorsClosed int

	errList      error
	errApprove   error
	errReject    error
	errCourses   error
	errCollision error
	errIterate   error
}

func newMemorySite() *memorySite {
	return &memorySite{
		courses:   map[int64]*courserequest.Course{},
		enrolled:  map[int64][]int64{},
		teacherIn: map[int64]map[int64]bool{},
		rejected:  map[int64]string{},
		nextID:    100,
	}
}

func (m *memorySite) addCourse(shortname string) *courserequest.Course {
	m.nextID++
	c := &courserequest.Course{ID: m.nextID, Shortname: shortname, Fullname: shortname, ContextID: m.nextID + 1000}
	m.courses[c.ID] = c
	return c
}

func (m *memorySite) enrol(userID int64, course *courserequest.Course, teacher bool) {
	m.enrolled[userID] = append(m.enrolled[userID], course.ID)
	if teacher {
		if m.teacherIn[userID] == nil {
			m.teacherIn[userID] = map[int64]bool{}
		}
		m.teacherIn[userID][course.ID] = true
	}
}

// giveTeacherCourses enrols the user as teacher in n new courses.
func (m *memorySite) giveTeacherCourses(userID int64, n int) {
	for i := 0; i < n; i++ {
		m.enrol(userID, m.addCourse(""), true)
	}
}

func (m *memorySite) submit(id, requester int64, shortname string) *courserequest.CourseRequest {
	r := &courserequest.CourseRequest{
		ID:        id,
		Requester: requester,
		Shortname: shortname,
		Fullname:  "Course " + shortname,
		Status:    courserequest.StatusPending,
	}
	m.pending = append(m.pending, r)
	return r
}

func (m *memorySite) remove(id int64) bool {
	for i, r := range m.pending {
		if r.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (m *memorySite) ListPending(context.Context) (courserequest.PendingCursor, error) {
	if m.errList != nil {
		return nil, m.errList
	}
	m.cursorsOpened++
	snapshot := make([]*courserequest.CourseRequest, len(m.pending))
	copy(snapshot, m.pending)
	return &sliceCursor{site: m, requests: snapshot, pos: -1}, nil
}

func (m *memorySite) Approve(_ context.Context, r *courserequest.CourseRequest) (*courserequest.Course, error) {
	if m.errApprove != nil {
		return nil, m.errApprove
	}
	if !m.remove(r.ID) {
		return nil, errors.New("request not pending")
	}
	c := m.addCourse(r.Shortname)
	m.enrol(r.Requester, c, true)
	m.approved = append(m.approved, r)
	return c, nil
}

func (m *memorySite) Reject(_ context.Context, r *courserequest.CourseRequest, message string) error {
	if m.errReject != nil {
		return m.errReject
	}
	if !m.remove(r.ID) {
		return errors.New("request not pending")
	}
	m.rejected[r.ID] = message
	return nil
}

func (m *memorySite) CoursesForUser(_ context.Context, userID int64) ([]*courserequest.Course, error) {
	if m.errCourses != nil {
		return nil, m.errCourses
	}
	var out []*courserequest.Course
	for _, id := range m.enrolled[userID] {
		out = append(out, m.courses[id])
	}
	return out, nil
}

func (m *memorySite) HasUpdateCapability(_ context.Context, userID int64, course *courserequest.Course) (bool, error) {
	return m.teacherIn[userID][course.ID], nil
}

func (m *memorySite) ShortnameExists(_ context.Context, shortname string) (bool, error) {
	if m.errCollision != nil {
		return false, m.errCollision
	}
	if shortname == "" {
		return false, nil
	}
	for _, c := range m.courses {
		if c.Shortname == shortname {
			return true, nil
		}
	}
	return false, nil
}

type sliceCursor struct {
	site     *memorySite
	requests []*courserequest.CourseRequest
	pos      int
	closed   bool
}

func (c *sliceCursor) Next() bool {
	if c.closed || c.site.errIterate != nil {
		return false
	}
	c.pos++
	return c.pos < len(c.requests)
}

func (c *sliceCursor) Request() *courserequest.CourseRequest { return c.requests[c.pos] }

func (c *sliceCursor) Err() error { return c.site.errIterate }

func (c *sliceCursor) Close() error {
	if !c.closed {
		c.closed = true
		c.site.cursorsClosed++
	}
	return nil
}

type recordingNotifier struct {
	rejected map[int64]string
	approved map[int64]int64 // request id -> course id
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{rejected: map[int64]string{}, approved: map[int64]int64{}}
}

func (n *recordingNotifier) NotifyRejected(_ context.Context, r *courserequest.CourseRequest, message string) error {
	if n.err != nil {
		return n.err
	}
	n.rejected[r.ID] = message
	return nil
}

func (n *recordingNotifier) NotifyApproved(_ context.Context, r *courserequest.CourseRequest, c *courserequest.Course) error {
	if n.err != nil {
		return n.err
	}
	n.approved[r.ID] = c.ID
	return nil
}

type memorySettings struct {
	cfg     settings.ApprovalConfig
	saveErr error
}

func (s *memorySettings) LoadApprovalConfig(context.Context) (settings.ApprovalConfig, error) {
	return s.cfg, nil
}

func (s *memorySettings) SaveMaxCourses(_ context.Context, n int) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cfg.MaxCourses = n
	return nil
}

func (s *memorySettings) SaveReject(_ context.Context, reject bool) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cfg.Reject = reject
	return nil
}
