package anticheat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/metrics"
)

// AnalyzeFunc recomputes the timing statistics of one user. analyzed is
// false when the user has too little history for a verdict.
type AnalyzeFunc func(ctx context.Context, userID string) (analyzed bool, err error)

// AnalyzerConfig sizes the background analysis pool.
type AnalyzerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Analyzer runs timing analyses on a fixed pool of workers fed by a bounded
// queue. Enqueue never blocks; a full queue drops the task, which is safe
// because the next recorded command enqueues the user again.
type Analyzer struct {
	work    AnalyzeFunc
	tasks   chan string
	done    chan struct{}
	wg      sync.WaitGroup
	close   sync.Once
	timeout time.Duration
	logger  *zap.Logger
	m       *metrics.Metrics
}

// NewAnalyzer creates an Analyzer and starts its workers. Zero config values
// default to 4 workers, a queue of 1024 and a 300ms deadline.
func NewAnalyzer(work AnalyzeFunc, cfg AnalyzerConfig, logger *zap.Logger, m *metrics.Metrics) *Analyzer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Millisecond
	}

	a := &Analyzer{
		work:    work,
		tasks:   make(chan string, cfg.QueueSize),
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		logger:  logger,
		m:       m,
	}

	a.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go a.worker()
	}
	return a
}

// Enqueue schedules an analysis for userID and reports whether it was queued.
func (a *Analyzer) Enqueue(userID string) bool {
	select {
	case <-a.done:
		return false
	default:
	}

	select {
	case a.tasks <- userID:
		a.m.AnalysisQueue.Set(float64(len(a.tasks)))
		return true
	default:
		a.m.AnalysesTotal.WithLabelValues(metrics.AnalysisDropped).Inc()
		a.logger.Warn("analysis queue full, dropping task",
			zap.String("user_id", userID),
		)
		return false
	}
}

// Close stops the workers and waits for in-flight analyses to finish.
// Queued tasks that have not started are discarded.
func (a *Analyzer) Close() {
	a.close.Do(func() { close(a.done) })
	a.wg.Wait()
}

func (a *Analyzer) worker() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case userID := <-a.tasks:
			a.m.AnalysisQueue.Set(float64(len(a.tasks)))
			a.run(userID)
		}
	}
}

func (a *Analyzer) run(userID string) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	analyzed, err := a.safeWork(ctx, userID)
	a.m.AnalysisDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil && ctx.Err() != nil:
		a.m.AnalysesTotal.WithLabelValues(metrics.AnalysisTimeout).Inc()
		a.logger.Warn("timing analysis deadline exceeded",
			zap.String("user_id", userID),
			zap.Duration("timeout", a.timeout),
		)
	case err != nil:
		a.m.AnalysesTotal.WithLabelValues(metrics.AnalysisFailed).Inc()
		a.logger.Error("timing analysis failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	case !analyzed:
		a.m.AnalysesTotal.WithLabelValues(metrics.AnalysisInsufficient).Inc()
	default:
		a.m.AnalysesTotal.WithLabelValues(metrics.AnalysisOK).Inc()
	}
}

func (a *Analyzer) safeWork(ctx context.Context, userID string) (analyzed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.work(ctx, userID)
}
