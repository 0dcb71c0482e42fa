// Package jobs runs the periodic maintenance work on a robfig/cron
// scheduler: closing overdue bookings and passes, purging spent OTP
// codes and evicting idle in-memory chat sessions.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/service"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = time.Minute

type Expirer interface {
	ExpireOverdue(ctx context.Context) (service.ExpireSummary, error)
}

type OTPPurger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper evicts expired chat contexts. Only the memory store needs one.
type Sweeper interface {
	Sweep() int
}

// Scheduler owns the cron instance and the job targets.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	otps    OTPPurger
	sweeper Sweeper
	log     *zap.Logger
	now     func() time.Time
}

// New registers every job whose target is non-nil. An invalid cron spec
// is an error so a typo in the environment fails startup.
func New(cfg config.JobsConfig, expirer Expirer, otps OTPPurger, sweeper Sweeper, log *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{log.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		expirer: expirer,
		otps:    otps,
		sweeper: sweeper,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}

	jobs := []struct {
		name string
		spec string
		on   bool
		run  func()
	}{
		{"expire_overdue", cfg.Expire, expirer != nil, s.ExpireOverdue},
		{"purge_otps", cfg.PurgeOTPs, otps != nil, s.PurgeOTPs},
		{"sweep_chat", cfg.SweepChat, sweeper != nil, s.SweepChat},
	}
	for _, j := range jobs {
		if !j.on || j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return nil, fmt.Errorf("register %s job %q: %w", j.name, j.spec, err)
		}
		log.Info("job registered", zap.String("job", j.name), zap.String("spec", j.spec))
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) ExpireOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sum, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error("expire overdue failed", zap.Error(err))
		return
	}
	if sum.BookingsCompleted+sum.BookingsExpired+sum.PassesExpired == 0 {
		return
	}
	s.log.Info("expired overdue items",
		zap.Int64("bookings_completed", sum.BookingsCompleted),
		zap.Int64("bookings_expired", sum.BookingsExpired),
		zap.Int64("passes_expired", sum.PassesExpired))
}

func (s *Scheduler) PurgeOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.otps.Purge(ctx, s.now())
	if err != nil {
		s.log.Error("otp purge failed", zap.Error(err))
		return
	}
	s.log.Info("otp codes purged", zap.Int64("deleted", n))
}

func (s *Scheduler) SweepChat() {
	if n := s.sweeper.Sweep(); n > 0 {
		s.log.Debug("chat contexts evicted", zap.Int("evicted", n))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...any) { l.s.Debugw("cron: "+msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.s.Errorw("cron: "+msg, append(kv, "error", err)...)
}
