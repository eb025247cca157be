package server

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"

	"moderation/internal/biz"
)

// cronLogger bridges cron's logger to kratos.
type cronLogger struct {
	log *log.Helper
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(append([]any{"msg", msg}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(append([]any{"msg", msg, "error", err}, keysAndValues...)...)
}

// SweepServer ticks the scheduler on a fixed interval. It implements
// transport.Server so the app starts and stops it with the others.
type SweepServer struct {
	cron   *cron.Cron
	sched  *biz.Scheduler
	cancel context.CancelFunc
	log    *log.Helper
}

// NewSweepServer creates the sweep timer for sched.
func NewSweepServer(sched *biz.Scheduler, logger log.Logger) *SweepServer {
	helper := log.NewHelper(log.With(logger, "module", "server/sweep"))
	cl := cronLogger{log: helper}
	return &SweepServer{
		cron:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		sched: sched,
		log:   helper,
	}
}

// Start schedules ticks. A tick that fires while a sweep is running is
// dropped by the scheduler.
func (s *SweepServer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	spec := fmt.Sprintf("@every %s", s.sched.Interval())
	if _, err := s.cron.AddFunc(spec, func() { s.sched.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.log.Infof("[sweep] document %q every %s", s.sched.Document(), s.sched.Interval())
	s.cron.Start()
	return nil
}

// Stop stops the timer and waits for a running sweep until ctx expires.
func (s *SweepServer) Stop(ctx context.Context) error {
	s.log.Info("[sweep] stopping")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		return ctx.Err()
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
