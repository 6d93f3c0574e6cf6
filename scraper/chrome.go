package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"books-etl/utils"
)

// ChromeFetcher renders pages in a headless Chrome before returning their
// HTML. Slower than HTTPFetcher but survives script-rendered result lists.
type ChromeFetcher struct {
	logger      *utils.Logger
	timeout     time.Duration
	settle      time.Duration
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelTab   context.CancelFunc
}

// NewChromeFetcher starts a browser process. chromeBin may be empty, in
// which case common install locations are searched.
func NewChromeFetcher(chromeBin string, timeout time.Duration, logger *utils.Logger) (*ChromeFetcher, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultHeaders["User-Agent"]),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser now so a missing binary fails at construction.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("chrome: start browser: %w", err)
	}

	return &ChromeFetcher{
		logger:      logger,
		timeout:     timeout,
		settle:      3 * time.Second,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelTab:   cancelTab,
	}, nil
}

// Fetch opens pageURL in a fresh tab and returns the rendered document.
func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(pageURL))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: int(resp.Status),
			Err:        fmt.Errorf("HTTP %d", resp.Status),
		}
	}

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(f.settle),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	f.logger.Debug("Rendered %s (%d bytes)", pageURL, len(html))
	return []byte(html), nil
}

func (f *ChromeFetcher) Close() error {
	f.cancelTab()
	f.cancelAlloc()
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary on PATH or in the usual
// install locations. The configured CHROME_BIN is applied by the caller.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
