package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"course_autoapprove/internal/app"
	"course_autoapprove/internal/domain/settings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("an approval run is already in progress")

// Job is the approval pass driven by the scheduler.
type Job interface {
	Run(ctx context.Context, cfg settings.ApprovalConfig) (*app.Report, error)
}

// ConfigLoader provides the approval configuration for each run.
type ConfigLoader interface {
	LoadApprovalConfig(ctx context.Context) (settings.ApprovalConfig, error)
}

type ApprovalScheduler struct {
	cronEngine *cron.Cron
	job        Job
	configs    ConfigLoader
	logger     *logrus.Entry
	taskName   string
	cronSpec   string
	timeout    time.Duration

	running sync.Mutex
}

func NewApprovalScheduler(
	job Job,
	configs ConfigLoader,
	logger *logrus.Entry,
	taskName string, // shown in logs, e.g. "Automatic approval of course requests"
	cronSpec string, // e.g. "*/30 * * * *"
	timeout time.Duration,
) *ApprovalScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &ApprovalScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		job:      job,
		configs:  configs,
		logger:   logger,
		taskName: taskName,
		cronSpec: cronSpec,
		timeout:  timeout,
	}
}

// Start registers the approval task and starts the cron engine.
func (s *ApprovalScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Infof("Starting scheduler for task %q", s.taskName)

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Infof("Cron job triggered for task %q", s.taskName)
		if _, err := s.RunOnce(context.Background()); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				s.logger.Warn("Previous approval run still in progress, trigger skipped")
				return
			}
			s.logger.WithError(err).Error("Approval run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add cron job %q with spec %q: %w", s.taskName, s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// RunOnce loads the current configuration and performs a single approval
// pass. Concurrent calls fail fast with ErrAlreadyRunning.
func (s *ApprovalScheduler) RunOnce(ctx context.Context) (*app.Report, error) {
	if !s.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cfg, err := s.configs.LoadApprovalConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval settings: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"requests_enabled": cfg.RequestsEnabled,
		"maxcourses":       cfg.MaxCourses,
		"reject":           cfg.Reject,
	}).Debug("Approval settings loaded")

	report, err := s.job.Run(ctx, cfg)
	if report != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"run_id":    report.RunID.String(),
			"mutations": report.Mutations(),
		})
		if err != nil {
			entry.WithError(err).Errorf("Partial %s", report.Summary())
		} else {
			entry.Info(report.Summary())
		}
	}
	return report, err
}

// Stop halts the cron engine and waits for a running job to finish.
func (s *ApprovalScheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler gracefully stopped")
}
