package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsinsight/internal/ingest"

	"github.com/robfig/cron/v3"
)

const (
	HourlyIngestSpec      = "0 * * * *"
	SessionPurgeSpec      = "30 3 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	DefaultIngestTimeout  = 15 * time.Minute
	purgeSessionsTimeout  = time.Minute
)

type Runner interface {
	Run(ctx context.Context) (ingest.RunReport, error)
}

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Config struct {
	IngestSpec    string
	IngestTimeout time.Duration
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	ingestJob cron.Job
	runner    Runner
	purger    SessionPurger
	cfg       Config
	log       *slog.Logger
}

func New(ctx context.Context, runner Runner, purger SessionPurger, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.IngestSpec == "" {
		cfg.IngestSpec = HourlyIngestSpec
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = DefaultIngestTimeout
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	s := &Scheduler{
		ctx:    ctx,
		cron:   c,
		runner: runner,
		purger: purger,
		cfg:    cfg,
		log:    log,
	}

	// Scheduled and manual runs share one chain so they never overlap.
	s.ingestJob = cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: log})).
		Then(cron.FuncJob(s.runIngest))

	return s
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob(s.cfg.IngestSpec, s.ingestJob); err != nil {
		return fmt.Errorf("add ingest job: %w", err)
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(SessionPurgeSpec, s.purgeSessions); err != nil {
			return fmt.Errorf("add session purge job: %w", err)
		}
	}

	s.cron.Start()

	s.log.InfoContext(s.ctx, "Scheduler is started",
		"ingestSpec", s.cfg.IngestSpec,
		"ingestTimeout", s.cfg.IngestTimeout)

	return nil
}

// Stop stops scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow triggers one ingestion outside the schedule. It is skipped when a
// run is already in progress.
func (s *Scheduler) RunNow() {
	s.ingestJob.Run()
}

func (s *Scheduler) runIngest() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.IngestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	report, err := s.runner.Run(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run ingestion",
			"error", err)
		return
	}

	if ctx.Err() != nil {
		s.log.WarnContext(ctx, "Ingestion is interrupted",
			"error", ctx.Err(),
			"usersDone", len(report.Users))
	}
}

func (s *Scheduler) purgeSessions() {
	ctx, cancel := context.WithTimeout(s.ctx, purgeSessionsTimeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to purge expired sessions",
			"error", err)
		return
	}

	s.log.InfoContext(ctx, "Expired sessions are purged",
		"count", n)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("Cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
