package extractsvc

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/primkey7607/vdms/extractfanout"
	"github.com/primkey7607/vdms/intervaldecoder"
	"github.com/primkey7607/vdms/keyframeindex"
)

// Pool runs ExtractJobs concurrently, bounded by cfg.WorkerPoolSize,
// one IntervalDecoder per job on its own goroutine, and publishes each
// completed ExtractResult onto a Bus.
type Pool struct {
	cfg    *Config
	logger *slog.Logger
	bus    extractfanout.Bus

	sem chan struct{}
	wg  sync.WaitGroup

	started   time.Time
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	abandoned atomic.Uint64
}

// NewPool constructs a Pool. bus receives every completed
// ExtractResult; the caller owns its lifecycle (subscribing before
// Submit, closing it after Wait returns).
func NewPool(cfg *Config, bus extractfanout.Bus, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		sem:     make(chan struct{}, cfg.WorkerPoolSize),
		started: time.Now(),
	}
}

// Submit runs job on its own goroutine, blocking only long enough to
// acquire a worker slot (never longer than ctx allows). The job's
// ExtractResult is published to the Pool's Bus unless ctx's deadline
// has already passed by the time decoding finishes, in which case the
// result is abandoned and counted rather than delivered stale.
func (p *Pool) Submit(ctx context.Context, job extractfanout.ExtractJob) {
	p.submitted.Add(1)

	if err := ctx.Err(); err != nil {
		p.abandoned.Add(1)
		p.logger.Warn("extractsvc: job abandoned before a worker slot freed", "job_id", job.JobID, "err", err)
		return
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.abandoned.Add(1)
		p.logger.Warn("extractsvc: job abandoned before a worker slot freed", "job_id", job.JobID, "err", ctx.Err())
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.runJob(ctx, job)
	}()
}

func (p *Pool) runJob(ctx context.Context, job extractfanout.ExtractJob) {
	start := time.Now()
	logger := p.logger.With("job_id", job.JobID, "path", job.Path)

	idx := keyframeindex.New(keyframeindex.WithLogger(logger))
	if err := idx.Init(job.Path); err != nil {
		p.failed.Add(1)
		logger.Error("extractsvc: keyframeindex init failed", "err", err)
		idx.Close()
		return
	}
	table, err := idx.Parse()
	idx.Close()
	if err != nil {
		p.failed.Add(1)
		logger.Error("extractsvc: keyframeindex parse failed", "err", err)
		return
	}

	dec := intervaldecoder.New(intervaldecoder.WithLogger(logger))
	defer dec.Close()
	if err := dec.Init(job.Path); err != nil {
		p.failed.Add(1)
		logger.Error("extractsvc: intervaldecoder init failed", "err", err)
		return
	}
	dropped, err := dec.SetWanted(table, job.Wanted)
	if err != nil {
		p.failed.Add(1)
		logger.Error("extractsvc: set wanted failed", "err", err)
		return
	}
	if len(dropped) > 0 {
		logger.Info("extractsvc: requested frames unreachable from keyframe table", "count", len(dropped))
	}

	frames, err := dec.Decode()
	if err != nil {
		p.failed.Add(1)
		logger.Error("extractsvc: decode failed", "err", err)
		return
	}

	duration := time.Since(start)

	if ctx.Err() != nil {
		p.abandoned.Add(1)
		logger.Warn("extractsvc: result abandoned, job context already cancelled", "duration", duration)
		return
	}

	p.completed.Add(1)
	p.bus.Publish(extractfanout.ExtractResult{
		JobID:    job.JobID,
		Frames:   frames,
		Duration: duration,
	})
	logger.Info("extractsvc: job complete", "frames", len(frames), "duration", duration)
}

// Wait blocks until every submitted job has finished running.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats is a snapshot of pool-level job counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Abandoned uint64
	UptimeS   float64
}

// Stats returns a snapshot of job counters since the pool was created.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Abandoned: p.abandoned.Load(),
		UptimeS:   time.Since(p.started).Seconds(),
	}
}
