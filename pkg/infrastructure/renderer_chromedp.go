package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpRasterizer captures a DOM node of an HTML document as a PNG using
// headless Chrome.
type ChromedpRasterizer struct {
	execPath string
	settle   time.Duration
	timeout  time.Duration
}

func NewChromedpRasterizer(cfg *Config) *ChromedpRasterizer {
	return &ChromedpRasterizer{execPath: cfg.ChromePath, settle: cfg.RenderSettle, timeout: cfg.RenderTimeout}
}

type nodeBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r *ChromedpRasterizer) Rasterize(ctx context.Context, html, selector string, scale float64) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	runCtx, cancelRun := context.WithTimeout(cctx, r.timeout)
	defer cancelRun()

	// the temporary render directory goes away on every path
	tmpDir, err := os.MkdirTemp("", "cv-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, err
	}

	sel, _ := json.Marshal(selector)
	boxJS := fmt.Sprintf(`(() => {
		const r = document.querySelector(%s).getBoundingClientRect();
		return {x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height};
	})()`, sel)

	var (
		box nodeBox
		png []byte
	)
	err = chromedp.Run(runCtx,
		chromedp.EmulateViewport(1280, 1600),
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		// no positive signal exists for fonts and styles being done
		chromedp.Sleep(r.settle),
		chromedp.Evaluate(boxJS, &box),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			png, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height, Scale: scale}).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("node %s has no size", selector)
	}
	return png, nil
}
