package viz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// SnapshotOptions tune the headless browser capture.
type SnapshotOptions struct {
	Timeout time.Duration
	// Quality 100 captures PNG; lower values switch the encoder to
	// JPEG, which Excel embedding does not expect.
	Quality        int
	ViewportWidth  int64
	ViewportHeight int64
}

// DefaultSnapshotOptions returns the standard capture settings.
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{
		Timeout:        config.SnapshotTimeout,
		Quality:        100,
		ViewportWidth:  1600,
		ViewportHeight: 900,
	}
}

func (o SnapshotOptions) withDefaults() SnapshotOptions {
	def := DefaultSnapshotOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Quality <= 0 {
		o.Quality = def.Quality
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = def.ViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = def.ViewportHeight
	}
	return o
}

// chartSettleDelay waits out the echarts entry animation after the
// canvas appears, so the capture shows the finished chart.
const chartSettleDelay = time.Second

// Snapshotter captures rendered chart HTML as PNG images. Snapshots
// are a best-effort extra: callers log a failure and ship the report
// without the image rather than failing the run.
type Snapshotter struct {
	logger *slog.Logger
	opts   SnapshotOptions
}

// NewSnapshotter returns a capturer with the standard settings. A nil
// logger falls back to the application logger.
func NewSnapshotter(logger *slog.Logger) *Snapshotter {
	return NewSnapshotterWithOptions(logger, DefaultSnapshotOptions())
}

// NewSnapshotterWithOptions returns a capturer with explicit settings.
// Zero values fall back to the defaults.
func NewSnapshotterWithOptions(logger *slog.Logger, opts SnapshotOptions) *Snapshotter {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Snapshotter{
		logger: infrastructure.WithComponent(logger, "viz.snapshot"),
		opts:   opts.withDefaults(),
	}
}

// SnapshotPath returns where Snapshot writes the PNG for a chart HTML
// file: alongside it, with the extension swapped.
func SnapshotPath(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".png"
}

// Snapshot loads htmlPath in a headless browser and writes a full-page
// PNG next to it, returning the PNG path. The whole capture runs under
// the configured timeout on top of ctx.
func (s *Snapshotter) Snapshot(ctx context.Context, htmlPath string) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", htmlPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("snapshot source: %w", err)
	}
	pngPath := SnapshotPath(abs)

	// The default allocator options already run Chrome headless.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, s.opts.Timeout)
	defer cancelRun()

	start := time.Now()
	s.logger.Debug("capturing chart snapshot",
		slog.String("source", abs),
		slog.Duration("timeout", s.opts.Timeout))

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(s.opts.ViewportWidth, s.opts.ViewportHeight),
		chromedp.Navigate("file://" + filepath.ToSlash(abs)),
		chromedp.WaitVisible("canvas", chromedp.ByQuery),
		chromedp.Sleep(chartSettleDelay),
		chromedp.FullScreenshot(&png, s.opts.Quality),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", filepath.Base(abs), err)
	}

	if err := os.WriteFile(pngPath, png, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("chart snapshot captured",
		slog.String("path", pngPath),
		slog.Int("bytes", len(png)),
		slog.Duration("duration", time.Since(start)))
	return pngPath, nil
}
