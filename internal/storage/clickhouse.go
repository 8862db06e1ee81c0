package storage

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter writes enforcement events to ClickHouse asynchronously.
// Write() is non-blocking: events are buffered and batch-inserted in a background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *EnforcementEvent
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
	onDrop  func()
}

// NewClickHouseWriter creates a ClickHouseWriter and starts the background flush loop.
// onDrop, if non-nil, is called for every event dropped because the buffer is full.
func NewClickHouseWriter(dsn string, logger *zap.Logger, onDrop func()) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	// ParseDSN sets TLS when ?secure=true is in the DSN; enforce it otherwise.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *EnforcementEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
		onDrop:  onDrop,
	}

	go w.flushLoop()
	return w, nil
}

// Write queues an enforcement event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *ClickHouseWriter) Write(event *EnforcementEvent) {
	select {
	case w.buffer <- event:
	default:
		if w.onDrop != nil {
			w.onDrop()
		}
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_id", event.EventID),
		)
	}
}

// Close signals the flush loop to drain remaining events, waits for it to
// finish (up to drainTimeout), and then returns. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*EnforcementEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []*EnforcementEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO enforcement_events (
			event_id, user_id, guild_id, timestamp,
			total_score, timing_score, behavioral_score, social_score, account_score, rate_limit_score,
			trust_score, action, captcha_type, rate_limit_multiplier, restrict_duration_ms,
			recommendation, source
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.UserID,
			e.GuildID,
			e.Timestamp,
			e.TotalScore,
			e.TimingScore,
			e.BehavioralScore,
			e.SocialScore,
			e.AccountScore,
			e.RateLimitScore,
			e.TrustScore,
			e.Action,
			e.CaptchaType,
			e.RateLimitMultiplier,
			e.RestrictDurationMs,
			e.Recommendation,
			e.Source,
		); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback EventWriter for local development.
// It logs events as structured JSON to stdout via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *EnforcementEvent) {
	w.logger.Info("enforcement_event",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("guild_id", event.GuildID),
		zap.String("source", event.Source),
		zap.String("action", event.Action),
		zap.String("captcha_type", event.CaptchaType),
		zap.Uint8("total_score", event.TotalScore),
		zap.Uint16("trust_score", event.TrustScore),
		zap.String("recommendation", event.Recommendation),
	)
}

func (w *LogWriter) Close() {}
