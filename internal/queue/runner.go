// Package queue runs extraction requests read from a Kafka topic.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/logger"
)

// Message is one queued request. The request id doubles as job id.
type Message struct {
	RequestID string `json:"request_id"`
	model.RequestDoc
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type Extractor interface {
	Run(ctx context.Context, req model.ExtractionRequest) (model.ExtractionResult, error)
}

type Runner struct {
	log      *slog.Logger
	cfg      Config
	ex       Extractor
	ms       *metricSet
	seen     *requestDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

func New(cfg Config, ex Extractor, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg,
		ex:     ex,
		ms:     newMetricSet(opts.Register),
		seen:   newRequestDedupe(cfg.DedupeSize),
		assign: map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("extract queue disabled")
		return nil
	}
	if r.ex == nil {
		return errors.New("queue runner: extractor dependency is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("extract queue started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("extract queue stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage runs one request. Bad payloads and failed extractions are
// logged and the message is committed. Only an extraction cut short by the
// session ending returns an error, which leaves the message unmarked.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		observability.IncQueueMessage("invalid")
		r.log.WarnContext(ctx, "undecodable extraction request",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if m.RequestID != "" && !r.seen.firstSeen(m.RequestID) {
		observability.IncQueueMessage("duplicate")
		r.log.DebugContext(ctx, "duplicate extraction request", "request_id", m.RequestID)
		return nil
	}

	doc := m.RequestDoc
	if doc.JobID == "" {
		doc.JobID = m.RequestID
	}
	req, err := doc.ToRequest(model.SecurityContext{Username: m.Username, Roles: m.Roles})
	if err != nil {
		observability.IncQueueMessage("invalid")
		r.log.WarnContext(ctx, "invalid extraction request", "request_id", m.RequestID, "err", err)
		return nil
	}

	ctx = logger.WithRequestID(logger.WithComponent(ctx, "queue"), m.RequestID)
	res, err := r.ex.Run(ctx, req)
	r.ms.proc.Observe(time.Since(start).Seconds())
	if err != nil && ctx.Err() != nil {
		// interrupted by shutdown or rebalance: leave the offset for the next owner
		r.seen.forget(m.RequestID)
		observability.IncQueueMessage("interrupted")
		return ctx.Err()
	}
	if err != nil {
		observability.IncQueueMessage("error")
		r.log.WarnContext(ctx, "queued extraction failed", "kind", errs.Kind(err), "err", err)
		return nil
	}
	observability.IncQueueMessage("ok")
	r.log.InfoContext(ctx, "queued extraction done",
		"job_id", res.JobID, "dir", res.Dir, "features", res.FeatureCount, "skipped", res.Skipped)
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
