package app

import (
	"context"
	"fmt"
	"time"

	"course_autoapprove/internal/domain/courserequest"
	"course_autoapprove/internal/domain/settings"
	"course_autoapprove/internal/infra/tracing"
	"course_autoapprove/internal/messages"

	"github.com/sirupsen/logrus"
)

const (
	SkipReasonRequestsDisabled = "course requests are disabled"
	SkipReasonMaxCoursesZero   = "maxcourses set to zero"
)

// RequestApprovalJob approves or rejects pending course requests based on
// the requester's teacher-course quota and shortname collisions.
type RequestApprovalJob struct {
	store        courserequest.RequestStore
	enrolments   courserequest.EnrollmentService
	capabilities courserequest.CapabilityService
	collisions   courserequest.CollisionChecker
	messages     *messages.Catalog
	logger       *logrus.Entry
}

func NewRequestApprovalJob(
	store courserequest.RequestStore,
	enrolments courserequest.EnrollmentService,
	capabilities courserequest.CapabilityService,
	collisions courserequest.CollisionChecker,
	catalog *messages.Catalog,
	logger *logrus.Entry,
) *RequestApprovalJob {
	return &RequestApprovalJob{
		store:        store,
		enrolments:   enrolments,
		capabilities: capabilities,
		collisions:   collisions,
		messages:     catalog,
		logger:       logger,
	}
}

// Run performs one pass over the pending requests. The returned report is
// never nil; on error it holds the decisions taken before the failure.
func (j *RequestApprovalJob) Run(ctx context.Context, cfg settings.ApprovalConfig) (report *Report, err error) {
	report = newReport()
	log := j.logger.WithField("run_id", report.RunID.String())

	ctx, span := tracing.StartSpan(ctx, "approve_course_requests")
	defer func() {
		report.FinishedAt = time.Now()
		span.SetInt("decisions", int64(len(report.Decisions)))
		tracing.EndSpan(span, err)
	}()

	if !cfg.RequestsEnabled {
		log.Info("... Automatic approval of course requests skipped (course requests disabled).")
		report.Skipped, report.SkipReason = true, SkipReasonRequestsDisabled
		return report, nil
	}
	if cfg.MaxCourses == 0 {
		log.Info("... Automatic approval of course requests skipped (maxcourses set to zero).")
		report.Skipped, report.SkipReason = true, SkipReasonMaxCoursesZero
		return report, nil
	}

	log.Info("... Starting to auto-approve course requests.")

	cursor, err := j.store.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list pending course requests: %w", err)
	}
	defer func() {
		if closeErr := cursor.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close pending course request cursor")
		}
	}()

	for cursor.Next() {
		request := cursor.Request()
		decision, err := j.decide(ctx, log, cfg, request)
		if err != nil {
			return report, err
		}
		report.add(decision)
	}
	if err := cursor.Err(); err != nil {
		return report, fmt.Errorf("failed to iterate pending course requests: %w", err)
	}

	log.Info("... Finished auto-approving course requests.")
	return report, nil
}

func (j *RequestApprovalJob) decide(ctx context.Context, log *logrus.Entry, cfg settings.ApprovalConfig, request *courserequest.CourseRequest) (decision Decision, err error) {
	ctx, span := tracing.StartSpan(ctx, "course_request")
	span.SetInt("request_id", request.ID)
	defer func() {
		span.SetString("outcome", string(decision.Outcome))
		tracing.EndSpan(span, err)
	}()

	decision = Decision{
		RequestID:  request.ID,
		Requester:  request.Requester,
		Shortname:  request.Shortname,
		MaxCourses: cfg.MaxCourses,
	}
	log = log.WithFields(logrus.Fields{
		"request_id": request.ID,
		"requester":  request.Requester,
		"shortname":  request.Shortname,
	})

	current, err := j.CountCoursesUserIsTeacher(ctx, request.Requester)
	if err != nil {
		return decision, fmt.Errorf("failed to count courses of requester %d: %w", request.Requester, err)
	}
	decision.CurrentCourses = current

	if current >= cfg.MaxCourses {
		decision.Outcome = OutcomePendingQuota
		if cfg.Reject {
			decision.Outcome = OutcomeRejectedQuota
		}
		log.WithField("outcome", decision.Outcome).
			Infof("... - Denying course request from userid %d as they are already a teacher in %d existing course(s) and the limit is %d.",
			request.Requester, current, cfg.MaxCourses)
		if cfg.Reject {
			log.Info("...   Marking the course request as rejected and notifying the user.")
			msg := j.messages.Get(messages.KeyRejectMsgCount, map[string]any{
				"currentcourses": current,
				"maxcourses":     cfg.MaxCourses,
			})
			if err := j.store.Reject(ctx, request, msg); err != nil {
				return decision, fmt.Errorf("failed to reject course request %d: %w", request.ID, err)
			}
		}
		return decision, nil
	}

	collides, err := j.collisions.ShortnameExists(ctx, request.Shortname)
	if err != nil {
		return decision, fmt.Errorf("failed to check shortname collision for course request %d: %w", request.ID, err)
	}
	if collides {
		decision.Outcome = OutcomePendingCollision
		if cfg.Reject {
			decision.Outcome = OutcomeRejectedCollision
		}
		log.WithField("outcome", decision.Outcome).
			Infof("... - Denying course request with shortname %s as there is another with the same shortname.", request.Shortname)
		if cfg.Reject {
			log.Info("...   Marking the course request as rejected and notifying the user.")
			msg := j.messages.Get(messages.KeyRejectMsgShortname, map[string]any{
				"shortname": request.Shortname,
			})
			if err := j.store.Reject(ctx, request, msg); err != nil {
				return decision, fmt.Errorf("failed to reject course request %d: %w", request.ID, err)
			}
		}
		return decision, nil
	}

	decision.Outcome = OutcomeApproved
	log.WithField("outcome", decision.Outcome).
		Infof("... - Approving course request from userid %d for the course %s.", request.Requester, request.Shortname)
	course, err := j.store.Approve(ctx, request)
	if err != nil {
		return decision, fmt.Errorf("failed to approve course request %d: %w", request.ID, err)
	}
	if course != nil {
		decision.CourseID = course.ID
	}
	return decision, nil
}

// CountCoursesUserIsTeacher returns the number of enrolled courses in which
// the user holds the course update capability.
func (j *RequestApprovalJob) CountCoursesUserIsTeacher(ctx context.Context, userID int64) (int, error) {
	courses, err := j.enrolments.CoursesForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	result := 0
	for _, course := range courses {
		ok, err := j.capabilities.HasUpdateCapability(ctx, userID, course)
		if err != nil {
			return 0, fmt.Errorf("failed to check capability in course %d: %w", course.ID, err)
		}
		if ok {
			result++
		}
	}
	return result, nil
}
