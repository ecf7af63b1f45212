// Command render hosts the document render service: it loads config, wires
// the browser pool / templating engine / PDF renderer / pipeline, and runs
// either the queue-mode or file-mode dispatcher depending on APP_MODE.
// Grounded on cmd/server/main.go's config/logger/signal-shutdown skeleton.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openrender/pdfrender/internal/application/rendering"
	"github.com/openrender/pdfrender/internal/infrastructure/config"
	"github.com/openrender/pdfrender/internal/infrastructure/dispatcher"
	"github.com/openrender/pdfrender/internal/infrastructure/logger"
	"github.com/openrender/pdfrender/internal/infrastructure/queue"
	"github.com/openrender/pdfrender/internal/infrastructure/rendering/browserpool"
	"github.com/openrender/pdfrender/internal/infrastructure/rendering/pdfrenderer"
	"github.com/openrender/pdfrender/internal/infrastructure/rendering/templating"
	"github.com/openrender/pdfrender/internal/infrastructure/telemetry"
)

func main() {
	mode := flag.String("mode", "", "override APP_MODE (queue|file)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	if *mode != "" {
		cfg.App.Mode = *mode
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting document render service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("mode", cfg.App.Mode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := browserpool.New(browserpool.Config{
		MinSize:               cfg.BrowserPool.MinSize,
		MaxSize:               cfg.BrowserPool.MaxSize,
		AcquireTimeout:        cfg.BrowserPool.AcquireTimeout,
		IdleTimeout:           cfg.BrowserPool.IdleTimeout,
		MaxRendersPerInstance: cfg.BrowserPool.MaxRendersPerInstance,
		RemoteURL:             cfg.BrowserPool.RemoteURL,
	}, log)
	defer pool.Shutdown()

	renderer := pdfrenderer.New(pool)
	newEngine := func(partials map[string]string) rendering.Engine {
		return templating.New(partials)
	}
	pipeline := rendering.NewPipeline(newEngine, renderer, log)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Metrics.Enabled,
		CollectorEndpoint: cfg.Metrics.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Metrics.Insecure,
	}, log)
	if err != nil {
		log.Warn("failed to initialize tracer provider, continuing without tracing", zap.Error(err))
	} else {
		defer func() { _ = tracerProvider.Shutdown(context.Background()) }()
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Metrics.Enabled,
		CollectorEndpoint: cfg.Metrics.CollectorEndpoint,
		ExportInterval:    cfg.Metrics.ExportInterval,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Metrics.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize meter provider", zap.Error(err))
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	metrics, err := telemetry.NewRenderMetrics(meterProvider.Meter(cfg.App.Name), log)
	if err != nil {
		log.Warn("failed to initialize render metrics, continuing without them", zap.Error(err))
		metrics = nil
	}

	switch cfg.App.Mode {
	case "file":
		runFileMode(ctx, log, cfg, pipeline, metrics)
	default:
		runQueueMode(ctx, log, cfg, pipeline, metrics)
	}

	log.Info("document render service exited gracefully")
}

func runFileMode(ctx context.Context, log *zap.Logger, cfg *config.Config, pipeline *rendering.Pipeline, metrics *telemetry.RenderMetrics) {
	fd := dispatcher.NewFileDispatcher(pipeline, metrics, log, dispatcher.FileDispatcherConfig{
		TemplatesRoot:        cfg.FileMode.TemplatesRoot,
		OutputPath:           cfg.FileMode.OutputPath,
		MaxConcurrentRenders: cfg.FileMode.MaxConcurrentRenders,
	})

	succeeded, failed, err := fd.RunOnce(ctx)
	if err != nil {
		log.Fatal("file-mode batch failed to run", zap.Error(err))
	}
	log.Info("file-mode batch complete", zap.Int("succeeded", succeeded), zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

func runQueueMode(ctx context.Context, log *zap.Logger, cfg *config.Config, pipeline *rendering.Pipeline, metrics *telemetry.RenderMetrics) {
	transport, err := queue.NewRedisStreamsTransport(queue.RedisStreamsConfig{
		Addr:          cfg.Queue.BootstrapServers,
		DB:            cfg.Queue.RedisDB,
		RequestStream: cfg.Queue.RequestTopic,
		ResultStream:  cfg.Queue.ResultTopic,
		DeadLetter:    cfg.Queue.DeadLetterTopic,
		ConsumerGroup: cfg.Queue.ConsumerGroupID,
		ConsumerName:  cfg.Queue.ConsumerName,
		MaxRetries:    cfg.Queue.MaxRetries,
		RetryDelay:    cfg.Queue.RetryDelay,
		BlockTimeout:  cfg.Queue.PollTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to queue transport", zap.Error(err))
	}
	defer transport.Close()

	qd := dispatcher.NewQueueDispatcher(pipeline, transport, dispatcher.DecodeEnvelope, metrics, log, dispatcher.QueueDispatcherConfig{
		MaxConcurrentRenders: cfg.Queue.MaxConcurrentRenders,
		BrowserPoolMaxSize:   cfg.BrowserPool.MaxSize,
		PdfOutputPath:        cfg.Queue.PdfOutputPath,
		MaxRetries:           cfg.Queue.MaxRetries,
	})

	log.Info("queue dispatcher running", zap.String("requestTopic", cfg.Queue.RequestTopic))
	if err := qd.Run(ctx); err != nil && err != context.Canceled {
		log.Error("queue dispatcher stopped with error", zap.Error(err))
	}
}
