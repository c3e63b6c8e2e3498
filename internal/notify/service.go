package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"zapbot/pkg/logx"
)

// Delay before the first cycle after startup, so the bot is polling and the
// log sinks are up before the first fetch.
const firstRunDelay = 5 * time.Second

// Service drives the Cycle on a fixed period. Runs never overlap: a tick
// that is still executing makes cron skip the next one, and a panicking tick
// is recovered and logged, never fatal.
type Service struct {
	cycle *Cycle
	every time.Duration
	loc   *time.Location
	log   logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func NewService(cycle *Cycle, every time.Duration, loc *time.Location, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cycle: cycle, every: every, loc: loc, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.every), func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("notify: schedule: %w", err)
	}
	s.c = c
	c.Start()
	s.log.Info("notify cycle scheduled",
		logx.Duration("every", s.every),
		logx.String("tz", s.loc.String()))

	// First pass shortly after startup instead of a full interval later.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(firstRunDelay):
			s.runOnce(ctx)
		}
	}()

	return nil
}

func (s *Service) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.cycle.Run(ctx); err != nil {
		s.log.Error("notify cycle failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Debug("notify cycle done", logx.Duration("took", time.Since(start)))
}

// Stop halts scheduling and waits for an in-flight tick, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger bridges robfig/cron's logger to logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	var fields []logx.Field
	for i := 0; i+1 < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		fields = append(fields, logx.Any(k, kv[i+1]))
	}
	return fields
}
