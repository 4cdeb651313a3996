// Package batch runs independent transcode jobs on a bounded worker group,
// recording each job in the history and answering repeats from the cache.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sonroyaalmerol/opusify/internal/cache"
	"github.com/sonroyaalmerol/opusify/internal/metrics"
	"github.com/sonroyaalmerol/opusify/internal/repository"
	"github.com/sonroyaalmerol/opusify/internal/transcode"
)

type Transcoder interface {
	Transcode(inputPath, outputPath string) (*transcode.Result, error)
	// OutputKey identifies the settings and container used for outputPath.
	OutputKey(outputPath string) string
}

type Pair struct {
	Input  string
	Output string
}

type Outcome struct {
	Pair
	JobID   string
	Status  repository.JobStatus
	Result  *transcode.Result // nil unless Status is success
	Err     error
	Elapsed time.Duration
}

type Runner struct {
	tr      Transcoder
	repo    *repository.Repo
	cache   *cache.FileCache
	workers int
	log     *slog.Logger
}

// NewRunner builds a runner. repo and fc may be nil to disable history and
// caching.
func NewRunner(tr Transcoder, repo *repository.Repo, fc *cache.FileCache, workers int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{tr: tr, repo: repo, cache: fc, workers: workers, log: logger}
}

// Run executes every pair and returns one outcome per pair, in input order.
// Jobs that have not started when ctx is cancelled fail with ctx's error;
// jobs already running finish.
func (r *Runner) Run(ctx context.Context, pairs []Pair) []Outcome {
	out := make([]Outcome, len(pairs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, p := range pairs {
		g.Go(func() error {
			out[i] = r.runOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) runOne(ctx context.Context, p Pair) Outcome {
	o := Outcome{Pair: p, JobID: uuid.NewString()}
	log := r.log.With("job", o.JobID, "input", p.Input, "output", p.Output)

	if err := ctx.Err(); err != nil {
		o.Status, o.Err = repository.JobFailure, err
		metrics.JobsTotal.WithLabelValues(string(o.Status)).Inc()
		return o
	}

	start := time.Now()
	job := &repository.Job{ID: o.JobID, InputPath: p.Input, OutputPath: p.Output, StartedAt: start}
	if r.repo != nil {
		if err := r.repo.CreateJob(ctx, job); err != nil {
			log.Warn("record job start", "err", err)
		}
	}

	metrics.JobsInFlight.Inc()
	o.Status, o.Result, o.Err = r.execute(ctx, log, p)
	metrics.JobsInFlight.Dec()
	o.Elapsed = time.Since(start)

	metrics.JobsTotal.WithLabelValues(string(o.Status)).Inc()
	metrics.JobDuration.Observe(o.Elapsed.Seconds())
	if o.Result != nil {
		metrics.EncodedSamplesTotal.Add(float64(o.Result.OutputSamples))
		metrics.PacketsWrittenTotal.Add(float64(o.Result.Packets))
		metrics.EncodedAudioSeconds.Add(o.Result.Duration.Seconds())
	}

	if o.Err != nil {
		log.Error("transcode failed", "err", o.Err)
	}

	if r.repo != nil {
		job.Status = o.Status
		if o.Err != nil {
			job.Error = o.Err.Error()
		}
		if o.Result != nil {
			job.InputSamples = o.Result.InputSamples
			job.OutputSamples = o.Result.OutputSamples
			job.Packets = o.Result.Packets
			job.Duration = o.Result.Duration
		}
		if err := r.repo.FinishJob(ctx, job); err != nil {
			log.Warn("record job end", "err", err)
		}
	}
	return o
}

func (r *Runner) execute(ctx context.Context, log *slog.Logger, p Pair) (repository.JobStatus, *transcode.Result, error) {
	var key string
	if r.cache != nil {
		k, err := r.cache.JobKey(p.Input, r.tr.OutputKey(p.Output))
		if err != nil {
			log.Debug("cache key", "err", err)
		} else {
			key = k
			ok, err := r.cache.Restore(ctx, key, p.Output)
			if err != nil {
				log.Warn("cache restore", "err", err)
			}
			if ok {
				log.Info("served from cache")
				return repository.JobCached, nil, nil
			}
		}
	}

	res, err := r.tr.Transcode(p.Input, p.Output)
	if err != nil {
		return repository.JobFailure, nil, fmt.Errorf("transcode %s: %w", p.Input, err)
	}

	if key != "" {
		if err := r.cache.Store(ctx, key, p.Output); err != nil {
			log.Warn("cache store", "err", err)
		}
	}
	return repository.JobSuccess, res, nil
}
