package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/store"
)

// Scheduler runs periodic housekeeping: sweeping expired invitations and
// purging old audit logs.
type Scheduler struct {
	cron           *cron.Cron
	store          *store.Store
	auditLogger    *audit.DBLogger
	auditRetention time.Duration
	log            *logrus.Logger
}

// New creates a scheduler. auditLogger may be nil when audit events go to
// the application log; the retention purge is skipped then.
func New(s *store.Store, auditLogger *audit.DBLogger, auditRetention time.Duration, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		cron:           cron.New(),
		store:          s,
		auditLogger:    auditLogger,
		auditRetention: auditRetention,
		log:            log,
	}
}

// Start registers the jobs and begins the schedule. Invitation sweeps run
// hourly; audit purges run daily.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweepInvitations); err != nil {
		return err
	}
	if s.auditLogger != nil && s.auditRetention > 0 {
		if _, err := s.cron.AddFunc("@daily", s.purgeAuditLogs); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweepInvitations() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.store.DeleteExpiredInvitations(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Error("invitation sweep failed")
		return
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept expired invitations")
	}
}

func (s *Scheduler) purgeAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.auditRetention)
	purged, err := s.auditLogger.Purge(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("audit log purge failed")
		return
	}
	if purged > 0 {
		s.log.WithFields(logrus.Fields{
			"purged": purged,
			"cutoff": cutoff,
		}).Info("purged old audit logs")
	}
}

// RunInvitationSweep triggers the sweep immediately, outside the schedule.
// The admin maintenance endpoint calls this.
func (s *Scheduler) RunInvitationSweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredInvitations(ctx, time.Now())
}

// RunAuditPurge triggers the retention purge immediately.
func (s *Scheduler) RunAuditPurge(ctx context.Context) (int64, error) {
	if s.auditLogger == nil {
		return 0, nil
	}
	return s.auditLogger.Purge(ctx, time.Now().Add(-s.auditRetention))
}
