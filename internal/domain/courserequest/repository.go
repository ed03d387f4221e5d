package courserequest

import (
	"context"
)

// PendingCursor iterates pending requests. It holds an open result set and
// must be closed by the caller.
type PendingCursor interface {
	Next() bool
	Request() *CourseRequest
	Err() error
	Close() error
}

// RequestStore defines the operations on stored course requests.
type RequestStore interface {
	ListPending(ctx context.Context) (PendingCursor, error)
	// Approve materializes the request into a course and removes it from the pending set.
	Approve(ctx context.Context, request *CourseRequest) (*Course, error)
	// Reject removes the request from the pending set. message is the text shown to the requester.
	Reject(ctx context.Context, request *CourseRequest, message string) error
}

// EnrollmentService lists the courses a user is enrolled in.
type EnrollmentService interface {
	CoursesForUser(ctx context.Context, userID int64) ([]*Course, error)
}

// CapabilityService answers whether a user may update a course.
type CapabilityService interface {
	HasUpdateCapability(ctx context.Context, userID int64, course *Course) (bool, error)
}

// CollisionChecker reports whether an existing course already uses a shortname.
type CollisionChecker interface {
	ShortnameExists(ctx context.Context, shortname string) (bool, error)
}
