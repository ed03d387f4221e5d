package courserequest

// Status of a course request. Rows read from the request table are always
// pending; approved and rejected requests are removed from it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CourseRequest is a user-submitted application to create a new course.
// Corresponds to the 'course_request' table.
type CourseRequest struct {
	ID        int64
	Requester int64 // user id
	Shortname string
	Fullname  string
	Summary   string
	Category  int64
	Reason    string
	Status    Status
}

// IsPending checks if the request still awaits a decision
func (r *CourseRequest) IsPending() bool {
	return r.Status == StatusPending
}

// Course is an existing course. ContextID is zero when the course has no
// course context yet.
type Course struct {
	ID        int64
	Shortname string
	Fullname  string
	Category  int64
	ContextID int64
}
