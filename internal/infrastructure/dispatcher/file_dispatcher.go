package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/openrender/pdfrender/internal/domain/rendering"
	"github.com/openrender/pdfrender/internal/infrastructure/telemetry"
)

const dispatchModeFile = "file"

// FileDispatcherConfig carries the file-mode root paths and concurrency
// bound of component C7.
type FileDispatcherConfig struct {
	TemplatesRoot        string
	OutputPath           string
	MaxConcurrentRenders int
}

// FileDispatcher scans a templates directory for *.json document
// templates and renders each to the outputs directory (component C7).
type FileDispatcher struct {
	pipeline Pipeline
	metrics  *telemetry.RenderMetrics
	logger   *zap.Logger
	cfg      FileDispatcherConfig
}

func NewFileDispatcher(pipeline Pipeline, metrics *telemetry.RenderMetrics, logger *zap.Logger, cfg FileDispatcherConfig) *FileDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	return &FileDispatcher{pipeline: pipeline, metrics: metrics, logger: logger, cfg: cfg}
}

// RunOnce walks TemplatesRoot recursively, renders every *.json document
// template concurrently (bounded by MaxConcurrentRenders), and returns a
// success/failure tally.
func (d *FileDispatcher) RunOnce(ctx context.Context) (succeeded, failed int, err error) {
	if _, statErr := os.Stat(d.cfg.TemplatesRoot); os.IsNotExist(statErr) {
		d.logger.Warn("templates root does not exist, creating it", zap.String("path", d.cfg.TemplatesRoot))
		if mkErr := os.MkdirAll(d.cfg.TemplatesRoot, 0o755); mkErr != nil {
			return 0, 0, fmt.Errorf("failed to create templates root: %w", mkErr)
		}
	}
	if mkErr := os.MkdirAll(d.cfg.OutputPath, 0o755); mkErr != nil {
		return 0, 0, fmt.Errorf("failed to create output directory: %w", mkErr)
	}

	paths, err := d.discover()
	if err != nil {
		return 0, 0, err
	}

	var ok, bad int64
	sem := make(chan struct{}, d.cfg.MaxConcurrentRenders)
	var wg sync.WaitGroup
	for _, p := range paths {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if d.renderFile(ctx, p) {
				atomic.AddInt64(&ok, 1)
			} else {
				atomic.AddInt64(&bad, 1)
			}
		}()
	}
	wg.Wait()

	return int(ok), int(bad), nil
}

func (d *FileDispatcher) discover() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.cfg.TemplatesRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan templates root: %w", err)
	}
	return paths, nil
}

// renderFile parses, renders and writes one template file. Failures are
// logged per-file and do not abort the batch — this is file mode's single
// recovery point, same role the queue dispatcher plays for C6.
func (d *FileDispatcher) renderFile(ctx context.Context, path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		d.logger.Error("failed to read template file", zap.String("path", path), zap.Error(err))
		return false
	}

	var tmpl rendering.DocumentTemplate
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		d.logger.Error("failed to parse template file", zap.String("path", path), zap.Error(err))
		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, dispatchModeFile, tmpl.DocumentType, string(rendering.KindIOTemplate))
		}
		return false
	}

	jobID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	req := rendering.NewRenderRequest(jobID, tmpl)

	result, err := d.pipeline.Execute(ctx, req)
	if err != nil {
		kind, _ := rendering.KindOf(err)
		d.logger.Error("render failed", zap.String("path", path), zap.String("documentType", tmpl.DocumentType), zap.Error(err))
		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, dispatchModeFile, tmpl.DocumentType, string(kind))
		}
		return false
	}

	outPath, err := writePDF(d.cfg.OutputPath, tmpl.DocumentType, req.JobID, result.PDFBytes)
	if err != nil {
		d.logger.Error("failed to write rendered pdf", zap.String("path", path), zap.Error(err))
		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, dispatchModeFile, tmpl.DocumentType, string(rendering.KindIOOutput))
		}
		return false
	}

	d.logger.Info("rendered document template", zap.String("source", path), zap.String("output", outPath), zap.Duration("elapsed", result.ElapsedTime))
	if d.metrics != nil {
		d.metrics.RecordSuccess(ctx, dispatchModeFile, tmpl.DocumentType, result.ElapsedTime.Seconds())
	}
	return true
}
