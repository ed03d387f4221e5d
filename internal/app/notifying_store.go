package app

import (
	"context"
	"fmt"

	"course_autoapprove/internal/domain/courserequest"
)

// Notifier tells requesters what happened to their course request.
type Notifier interface {
	NotifyRejected(ctx context.Context, request *courserequest.CourseRequest, message string) error
	NotifyApproved(ctx context.Context, request *courserequest.CourseRequest, course *courserequest.Course) error
}

// NotifyingRequestStore decorates a RequestStore so that every approval and
// rejection is followed by a message to the requester.
type NotifyingRequestStore struct {
	courserequest.RequestStore
	notifier Notifier
}

func NewNotifyingRequestStore(store courserequest.RequestStore, notifier Notifier) *NotifyingRequestStore {
	return &NotifyingRequestStore{RequestStore: store, notifier: notifier}
}

func (s *NotifyingRequestStore) Approve(ctx context.Context, request *courserequest.CourseRequest) (*courserequest.Course, error) {
	course, err := s.RequestStore.Approve(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyApproved(ctx, request, course); err != nil {
		return course, fmt.Errorf("course request %d approved but notifying requester %d failed: %w", request.ID, request.Requester, err)
	}
	return course, nil
}

func (s *NotifyingRequestStore) Reject(ctx context.Context, request *courserequest.CourseRequest, message string) error {
	if err := s.RequestStore.Reject(ctx, request, message); err != nil {
		return err
	}
	if err := s.notifier.NotifyRejected(ctx, request, message); err != nil {
		return fmt.Errorf("course request %d rejected but notifying requester %d failed: %w", request.ID, request.Requester, err)
	}
	return nil
}
