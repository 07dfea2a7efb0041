// internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

const installTimeout = 5 * time.Minute

// Driver owns one browser session (a single context and page) and performs
// one operation at a time against it. Every operation catches its own
// transport-level errors and reports a plain success/failure result; raw
// Playwright errors never reach the orchestration loop. That boundary is
// what lets the loop treat all failures uniformly.
type Driver struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page

	mu sync.RWMutex
	// currentURL tracks the last successfully requested navigation target,
	// not the live page URL. This keeps planner-visible state deterministic
	// even when a page redirects itself.
	currentURL string

	closeOnce sync.Once
}

// Statically assert the driver satisfies the loop's operation surface.
var _ schemas.BrowserDriver = (*Driver)(nil)

// NewDriver creates an unlaunched driver. Call Launch before use and pair it
// with Close, even on abnormal termination.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	return &Driver{
		logger: logger.Named("browser_driver"),
		cfg:    cfg,
	}
}

// Launch starts the Playwright driver, the browser process, and a fresh
// context/page. Partial acquisitions are released before the error returns.
func (d *Driver) Launch(ctx context.Context) error {
	if d.cfg.InstallBrowsers {
		if err := d.ensureInstallation(ctx); err != nil {
			return err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright driver: %w", err)
	}
	d.pw = pw

	launchTimeout := d.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 60 * time.Second
	}

	// Default arguments for stability, especially in containers.
	args := append([]string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}, d.cfg.Args...)

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
		Args:     args,
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
	})
	if err != nil {
		pw.Stop()
		d.pw = nil
		return fmt.Errorf("failed to launch browser instance: %w", err)
	}
	d.browser = browser

	browserCtx, err := browser.NewContext()
	if err != nil {
		browser.Close()
		pw.Stop()
		d.pw = nil
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	d.browserCtx = browserCtx

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		d.pw = nil
		return fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page

	d.logger.Info("Browser session launched.", zap.Bool("headless", d.cfg.Headless))
	return nil
}

func (d *Driver) ensureInstallation(ctx context.Context) error {
	d.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	// Install blocks, so run it under the timeout.
	errChan := make(chan error, 1)
	go func() {
		errChan <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

// Close tears the session down: page context, browser process, and the
// Playwright driver. Idempotent; always releases whatever was acquired.
func (d *Driver) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		d.logger.Info("Closing browser session.")
		if d.browserCtx != nil {
			if err := d.browserCtx.Close(); err != nil {
				d.logger.Warn("Failed to close browser context.", zap.Error(err))
			}
		}
		if d.browser != nil {
			if err := d.browser.Close(); err != nil {
				d.logger.Warn("Failed to close browser instance.", zap.Error(err))
				closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		}
		if d.pw != nil {
			if err := d.pw.Stop(); err != nil {
				d.logger.Warn("Failed to stop playwright driver.", zap.Error(err))
				if closeErr == nil {
					closeErr = fmt.Errorf("failed to stop playwright driver: %w", err)
				}
			}
		}
	})
	return closeErr
}

// Navigate loads the URL. On failure the recorded current URL is unchanged.
func (d *Driver) Navigate(url string, timeout time.Duration) bool {
	if d.page == nil {
		return false
	}

	navTimeout := timeout
	if d.cfg.NavigationTimeout > navTimeout {
		navTimeout = d.cfg.NavigationTimeout
	}

	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(navTimeout.Milliseconds())),
	}); err != nil {
		d.logger.Warn("Navigation failed.", zap.String("url", url), zap.Error(err))
		return false
	}

	d.mu.Lock()
	d.currentURL = url
	d.mu.Unlock()

	d.logger.Info("Navigated.", zap.String("url", url))
	return true
}

// Click waits up to timeout for the element to be actionable and clicks it.
func (d *Driver) Click(locator string, timeout time.Duration) bool {
	if d.page == nil {
		return false
	}
	if err := d.page.Click(locator, playwright.PageClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		d.logger.Warn("Click failed.", zap.String("locator", locator), zap.Error(err))
		return false
	}
	return true
}

// Type waits up to timeout for the element, then clears and fills it.
func (d *Driver) Type(locator, text string, timeout time.Duration) bool {
	if d.page == nil {
		return false
	}
	if err := d.page.Fill(locator, text, playwright.PageFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		d.logger.Warn("Type failed.", zap.String("locator", locator), zap.Error(err))
		return false
	}
	return true
}

// Extract waits up to timeout for the element and returns its visible text.
func (d *Driver) Extract(locator string, timeout time.Duration) (string, bool) {
	if d.page == nil {
		return "", false
	}
	element, err := d.page.WaitForSelector(locator, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil || element == nil {
		d.logger.Warn("Extract failed.", zap.String("locator", locator), zap.Error(err))
		return "", false
	}

	text, err := element.InnerText()
	if err != nil {
		d.logger.Warn("Failed to read element text.", zap.String("locator", locator), zap.Error(err))
		return "", false
	}
	return text, true
}

// WaitFor waits up to timeout for the element to be present.
func (d *Driver) WaitFor(locator string, timeout time.Duration) bool {
	if d.page == nil {
		return false
	}
	if _, err := d.page.WaitForSelector(locator, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		d.logger.Warn("Wait failed.", zap.String("locator", locator), zap.Error(err))
		return false
	}
	return true
}

// CurrentURL returns the last URL successfully navigated to; empty before
// the first navigation.
func (d *Driver) CurrentURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentURL
}

// SnapshotContent returns the sanitized HTML of the current page, or the
// empty string when the page cannot be read.
func (d *Driver) SnapshotContent() string {
	if d.page == nil {
		return ""
	}
	content, err := d.page.Content()
	if err != nil {
		d.logger.Warn("Failed to read page content.", zap.Error(err))
		return ""
	}
	return SanitizeHTML(content)
}
