// Package runner leases enrichment jobs and dispatches them to the
// archive, thumbnail and link check components.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/linkcheck"
	"github.com/dlnorman/linkhoard/internal/metrics"
)

// Thumbnailer produces a stored thumbnail for a page URL.
type Thumbnailer interface {
	Acquire(ctx context.Context, subjectURL string) (enrich.AcquiredImage, error)
}

// ThumbRemover deletes a previously stored thumbnail file.
type ThumbRemover interface {
	Remove(relPath string) error
}

// Checker probes a URL's health.
type Checker interface {
	Check(ctx context.Context, rawURL string) (linkcheck.Result, error)
}

// Archiver requests an external archive snapshot and returns a permalink.
type Archiver interface {
	Archive(ctx context.Context, rawURL string) (string, error)
}

// Runner drains the job queue one batch at a time.
type Runner struct {
	store    enrich.Store
	thumbs   Thumbnailer
	remover  ThumbRemover
	checker  Checker
	archiver Archiver
	clock    enrich.Clock
	cfg      config.QueueConfig
	logger   *zap.Logger
}

// New wires a runner. remover may share the pipeline's thumbnail saver.
func New(store enrich.Store, thumbs Thumbnailer, remover ThumbRemover, checker Checker, archiver Archiver, clock enrich.Clock, cfg config.QueueConfig, logger *zap.Logger) *Runner {
	return &Runner{
		store:    store,
		thumbs:   thumbs,
		remover:  remover,
		checker:  checker,
		archiver: archiver,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunOnce leases one batch and processes every job in it. Each job is
// resolved individually so a failing job never blocks its batch mates.
// Returns the number of jobs processed.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	jobs, err := r.store.LeaseNextBatch(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("lease batch: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	batchID := uuid.NewString()
	logger := r.logger.With(zap.String("batch_id", batchID))

	for _, job := range jobs {
		result, jobErr := r.dispatch(ctx, job)
		success := jobErr == nil
		if !success {
			result = jobErr.Error()
			logger.Warn("job failed",
				zap.Int64("job_id", job.ID),
				zap.String("kind", string(job.Kind)),
				zap.Int("attempts", job.Attempts+1),
				zap.Error(jobErr))
		}
		outcome := "completed"
		var err error
		switch {
		case success:
			err = r.store.Resolve(ctx, job.ID, true, result, r.cfg.MaxAttempts)
		case fetch.Rejected(jobErr):
			// Policy rejections are deterministic: the URL will be
			// rejected again on every retry, so fail the job now.
			outcome = "failed"
			err = r.store.Fail(ctx, job.ID, result)
		default:
			outcome = "retry"
			if job.Attempts+1 >= r.cfg.MaxAttempts {
				outcome = "failed"
			}
			err = r.store.Resolve(ctx, job.ID, false, result, r.cfg.MaxAttempts)
		}
		if err != nil {
			logger.Error("resolve job", zap.Int64("job_id", job.ID), zap.Error(err))
			continue
		}
		metrics.RecordJob(string(job.Kind), outcome)
	}

	r.refreshBrokenGauge(ctx)
	metrics.RecordBatch(time.Since(started))
	return len(jobs), nil
}

// Run loops RunOnce on the configured interval until the context ends.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("batch run", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("batch run", zap.Int("jobs", n))
			}
		}
	}
}

// dispatch routes a job by kind. A panic in a handler is converted to a
// job failure so the batch and the process survive it.
func (r *Runner) dispatch(ctx context.Context, job enrich.Job) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()

	subject, err := r.store.GetSubject(ctx, job.SubjectID)
	if err != nil {
		return "", fmt.Errorf("load subject %d: %w", job.SubjectID, err)
	}

	switch job.Kind {
	case enrich.KindArchive:
		return r.runArchive(ctx, subject)
	case enrich.KindThumbnail:
		return r.runThumbnail(ctx, subject)
	case enrich.KindCheckURL:
		return r.runCheck(ctx, subject)
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (r *Runner) runArchive(ctx context.Context, subject enrich.Subject) (string, error) {
	permalink, err := r.archiver.Archive(ctx, subject.URL)
	if err != nil {
		return "", err
	}
	if err := r.store.SetArchiveURL(ctx, subject.ID, permalink); err != nil {
		return "", fmt.Errorf("store archive url: %w", err)
	}
	return permalink, nil
}

func (r *Runner) runThumbnail(ctx context.Context, subject enrich.Subject) (string, error) {
	img, err := r.thumbs.Acquire(ctx, subject.URL)
	if err != nil {
		return "", err
	}
	old := subject.ScreenshotPath
	if err := r.store.SetScreenshotPath(ctx, subject.ID, img.StoragePath); err != nil {
		return "", fmt.Errorf("store thumbnail path: %w", err)
	}
	if old != "" && old != img.StoragePath {
		if err := r.remover.Remove(old); err != nil {
			r.logger.Warn("remove old thumbnail", zap.String("path", old), zap.Error(err))
		}
	}
	return fmt.Sprintf("%s via %s", img.StoragePath, img.Method), nil
}

func (r *Runner) runCheck(ctx context.Context, subject enrich.Subject) (string, error) {
	res, err := r.checker.Check(ctx, subject.URL)
	if err != nil {
		return "", err
	}
	if err := r.store.SetLinkStatus(ctx, subject.ID, res.Broken, r.clock.Now()); err != nil {
		return "", fmt.Errorf("store link status: %w", err)
	}
	return res.Message, nil
}

func (r *Runner) refreshBrokenGauge(ctx context.Context) {
	n, err := r.store.BrokenCount(ctx)
	if err != nil {
		r.logger.Warn("broken count", zap.Error(err))
		return
	}
	metrics.SetBrokenLinks(n)
}
