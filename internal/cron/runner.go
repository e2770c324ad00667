package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	timeout time.Duration
}

// New builds a runner on the standard five-field parser (descriptors such as
// "@every 5m" included). Each job run gets its own context bounded by timeout.
func New(logger *zap.Logger, baseCtx context.Context, timeout time.Duration) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := zapCronLogger{logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
		timeout: timeout,
	}
}

func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		r.run(name, job)
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("cron job scheduled", zap.String("job", name), zap.String("spec", spec))
	return id, nil
}

func (r *Runner) run(name string, job func(context.Context) error) {
	ctx := r.baseCtx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	started := time.Now()
	err := job(ctx)
	fields := []zap.Field{
		zap.String("job", name),
		zap.Duration("took", time.Since(started)),
	}
	if err != nil {
		r.logger.Error("cron job failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("cron job done", fields...)
}

func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	r.logger.Info("cron started")
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

type zapCronLogger struct {
	s *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
