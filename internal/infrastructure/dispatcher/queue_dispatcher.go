// Package dispatcher implements the render orchestration engine's two
// request dispatchers: queue-mode (C6), driven by a message broker, and
// file-mode (C7), driven by a filesystem walk. Both build a RenderRequest,
// invoke the pipeline, and are the single recovery point for pipeline
// errors — engine, pool, renderer and pipeline perform no recovery of
// their own.
package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openrender/pdfrender/internal/domain/rendering"
	"github.com/openrender/pdfrender/internal/infrastructure/queue"
	"github.com/openrender/pdfrender/internal/infrastructure/telemetry"
)

const dispatchModeQueue = "queue"

// Pipeline is the subset of the render pipeline the dispatchers depend on.
type Pipeline interface {
	Execute(cancelSignal context.Context, req rendering.RenderRequest) (rendering.RenderResult, error)
}

// QueueDispatcherConfig carries the Queue.* configuration keys of §6.
type QueueDispatcherConfig struct {
	MaxConcurrentRenders int
	BrowserPoolMaxSize   int
	PdfOutputPath        string

	// MaxRetries bounds how many times a transient failure is retried
	// before the dispatcher gives up and publishes a failure reply
	// instead of asking the transport to redeliver. Must match the
	// transport's own MaxRetries (it independently decides retry vs.
	// dead-letter once delivery count exceeds it); kept here too so the
	// dispatcher can tell a mid-retry failure from a final one.
	MaxRetries int
}

// QueueDispatcher drives the pipeline from broker messages (component C6).
type QueueDispatcher struct {
	pipeline  Pipeline
	transport queue.Transport
	decode    func([]byte) (rendering.Envelope, error)
	metrics   *telemetry.RenderMetrics
	logger    *zap.Logger
	cfg       QueueDispatcherConfig

	sem chan struct{} // bounds in-flight renders to MaxConcurrentRenders
}

// NewQueueDispatcher wires a dispatcher. decode parses the wire envelope
// (interfaces JSON encoding concretely, kept out of this package so the
// core never mandates a specific encoding).
func NewQueueDispatcher(
	pipeline Pipeline,
	transport queue.Transport,
	decode func([]byte) (rendering.Envelope, error),
	metrics *telemetry.RenderMetrics,
	logger *zap.Logger,
	cfg QueueDispatcherConfig,
) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = cfg.BrowserPoolMaxSize
	}
	// Invariant: maxConcurrentRenders must not exceed the browser pool's
	// capacity. The dispatcher never silently overrides a misconfiguration
	// — it clamps and logs loudly instead.
	if cfg.BrowserPoolMaxSize > 0 && cfg.MaxConcurrentRenders > cfg.BrowserPoolMaxSize {
		logger.Warn("maxConcurrentRenders exceeds browser pool capacity, clamping",
			zap.Int("configured", cfg.MaxConcurrentRenders),
			zap.Int("poolMaxSize", cfg.BrowserPoolMaxSize))
		cfg.MaxConcurrentRenders = cfg.BrowserPoolMaxSize
	}

	return &QueueDispatcher{
		pipeline:  pipeline,
		transport: transport,
		decode:    decode,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrentRenders),
	}
}

// Run subscribes to the transport until ctx is cancelled.
func (d *QueueDispatcher) Run(ctx context.Context) error {
	return d.transport.Subscribe(ctx, d.handleMessage)
}

func (d *QueueDispatcher) handleMessage(ctx context.Context, msg queue.Message) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()

	envelope, err := d.decode(msg.Body)
	if err != nil {
		d.logger.Error("failed to decode envelope, dropping message", zap.Error(err))
		return nil // malformed body is not retryable; ack it away
	}

	outcome := d.renderOne(ctx, msg, envelope)
	if outcome.publish {
		body, err := encodeReply(outcome.reply)
		if err != nil {
			d.logger.Error("failed to encode reply envelope", zap.Error(err))
			return err
		}
		// Idempotent w.r.t. post-pipeline side effects: publishing the
		// same reply twice (e.g. after an at-least-once redelivery whose
		// PDF write already happened) is harmless — the reply and the
		// output file both key off the same correlation id.
		if err := d.transport.Publish(ctx, body); err != nil {
			return err
		}
	}

	// A non-nil transportErr here means either a not-yet-exhausted
	// retryable failure (nothing was published above; the message stays
	// unacked for redelivery) or an exhausted one (the failure reply was
	// just published, and this return still carries the error so the
	// transport's own retry/dead-letter policy routes the original
	// message to its dead-letter topic and acks it).
	return outcome.transportErr
}

// renderOutcome tells handleMessage whether to publish a reply this
// attempt and what, if anything, to report back to the transport.
type renderOutcome struct {
	reply        rendering.ReplyEnvelope
	publish      bool
	transportErr error
}

// renderOne executes the pipeline for one envelope and decides, per the
// §4.5/§7 retry policy, how the outcome should be reported. CANCELLED and
// POOL_DISPOSED never retry: they publish a failure reply immediately and
// ack. The remaining transient kinds retry silently (no reply published)
// until msg.Attempt reaches MaxRetries, at which point the failure reply
// is published *and* the transport is still signaled so its own
// dead-letter routing fires.
func (d *QueueDispatcher) renderOne(ctx context.Context, msg queue.Message, env rendering.Envelope) renderOutcome {
	start := time.Now()
	req := rendering.NewRenderRequest(env.CorrelationID, env.Template)

	result, err := d.pipeline.Execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		kind, _ := rendering.KindOf(err)
		retryable := rendering.Retryable(kind)
		exhausted := msg.Attempt >= d.cfg.MaxRetries

		if retryable && !exhausted {
			d.logger.Warn("render failed, signaling retry",
				zap.String("kind", string(kind)),
				zap.Int("attempt", msg.Attempt),
				zap.Error(err))
			return renderOutcome{transportErr: err}
		}

		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, dispatchModeQueue, env.Template.DocumentType, string(kind))
		}
		reply := rendering.ReplyEnvelope{
			CorrelationID: env.CorrelationID,
			DeviceID:      env.DeviceID,
			SessionID:     env.SessionID,
			DocumentType:  env.Template.DocumentType,
			Success:       false,
			ErrorMessage:  err.Error(),
			ElapsedTime:   elapsed,
			CompletedAt:   time.Now().UTC(),
		}
		if retryable {
			// Exhausted: publish the failure reply and still hand the
			// error back so the transport dead-letters the message.
			return renderOutcome{reply: reply, publish: true, transportErr: err}
		}
		return renderOutcome{reply: reply, publish: true}
	}

	if d.metrics != nil {
		d.metrics.RecordSuccess(ctx, dispatchModeQueue, env.Template.DocumentType, elapsed.Seconds())
	}

	reply := rendering.ReplyEnvelope{
		CorrelationID: env.CorrelationID,
		DeviceID:      env.DeviceID,
		SessionID:     env.SessionID,
		DocumentType:  env.Template.DocumentType,
		Success:       true,
		ElapsedTime:   result.ElapsedTime,
		CompletedAt:   time.Now().UTC(),
	}

	if env.ReturnInline() {
		reply.PdfBase64 = base64.StdEncoding.EncodeToString(result.PDFBytes)
		return renderOutcome{reply: reply, publish: true}
	}

	path, writeErr := writePDF(d.cfg.PdfOutputPath, env.Template.DocumentType, env.CorrelationID, result.PDFBytes)
	if writeErr != nil {
		ioErr := rendering.NewError(rendering.KindIOOutput, "failed to persist rendered pdf", writeErr)
		exhausted := msg.Attempt >= d.cfg.MaxRetries
		if !exhausted {
			d.logger.Warn("failed to persist rendered pdf, signaling retry",
				zap.Int("attempt", msg.Attempt), zap.Error(writeErr))
			return renderOutcome{transportErr: ioErr}
		}

		reply.Success = false
		reply.PdfBase64 = ""
		reply.ErrorMessage = fmt.Sprintf("failed to persist rendered pdf: %v", writeErr)
		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, dispatchModeQueue, env.Template.DocumentType, string(rendering.KindIOOutput))
		}
		return renderOutcome{reply: reply, publish: true, transportErr: ioErr}
	}
	reply.PdfPath = path
	return renderOutcome{reply: reply, publish: true}
}

// writePDF implements the §6 output naming rule:
// <documentType>_<id-without-dashes>.pdf under root.
func writePDF(root, documentType, id string, pdfBytes []byte) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.pdf", documentType, strings.ReplaceAll(id, "-", ""))
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
