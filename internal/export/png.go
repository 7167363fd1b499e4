package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/chartsync/internal/render"
)

// Screenshotter renders exported pages to PNG in a remote Chromium.
type Screenshotter struct {
	cdpURL  string
	timeout time.Duration
}

func NewScreenshotter(cdpURL string, timeout time.Duration) *Screenshotter {
	return &Screenshotter{cdpURL: cdpURL, timeout: timeout}
}

// PNG loads html into a fresh tab, waits for the chart canvas and captures
// the full page. The tab is closed afterwards. Browser failures wrap
// render.ErrUnavailable.
func (s *Screenshotter) PNG(ctx context.Context, html []byte) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.cdpURL)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()
	runCtx, cancel := context.WithTimeout(tabCtx, s.timeout)
	defer cancel()

	start := time.Now()
	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("canvas", chromedp.ByQuery),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", render.ErrUnavailable, err)
	}
	slog.Debug("page screenshot captured", "bytes", len(buf), "duration_ms", time.Since(start).Milliseconds())
	return buf, nil
}
