package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher launches Chromium through Playwright.
type PlaywrightLauncher struct {
	opts        Options
	installOnce sync.Once
	installErr  error
}

// NewPlaywrightLauncher creates a new Playwright launcher.
func NewPlaywrightLauncher(opts Options) *PlaywrightLauncher {
	return &PlaywrightLauncher{opts: opts}
}

// install downloads the driver and browsers once per launcher.
func (l *PlaywrightLauncher) install(runOpts *playwright.RunOptions) error {
	l.installOnce.Do(func() {
		if err := playwright.Install(runOpts); err != nil {
			l.installErr = fmt.Errorf("failed to install playwright: %w", err)
		}
	})
	return l.installErr
}

// Launch starts Playwright and Chromium and opens a single page.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Keep Playwright's own output out of the service logs
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if l.opts.Install {
		if err := l.install(runOpts); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	headless := l.opts.Headless
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  l.opts.Viewport.Width,
			Height: l.opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultNavigationTimeout(milliseconds(l.opts.NavigationTimeout))

	return &PlaywrightDriver{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
	}, nil
}

// PlaywrightDriver implements Driver on a single Playwright page.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// Navigate navigates the page to the specified URL.
func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitVisible waits for selector to become visible.
func (d *PlaywrightDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := playwright.WaitForSelectorState("visible")
	opts := playwright.PageWaitForSelectorOptions{State: &state}
	if timeout > 0 {
		ms := milliseconds(timeout)
		opts.Timeout = &ms
	}

	if _, err := d.page.WaitForSelector(selector, opts); err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

// Type types text into the element matching selector.
func (d *PlaywrightDriver) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := playwright.PageTypeOptions{}
	if delay > 0 {
		ms := milliseconds(delay)
		opts.Delay = &ms
	}

	if err := d.page.Type(selector, text, opts); err != nil {
		return fmt.Errorf("type into %s failed: %w", selector, err)
	}
	return nil
}

// Click clicks the element matching selector.
func (d *PlaywrightDriver) Click(ctx context.Context, selector string, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := playwright.PageClickOptions{}
	if count > 1 {
		opts.ClickCount = &count
	}

	if err := d.page.Click(selector, opts); err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

// ExportPage prints the page to an A4 PDF at path.
func (d *PlaywrightDriver) ExportPage(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format := "A4"
	printBackground := true
	if _, err := d.page.PDF(playwright.PagePdfOptions{
		Path:            &path,
		Format:          &format,
		PrintBackground: &printBackground,
	}); err != nil {
		return fmt.Errorf("pdf export failed: %w", err)
	}
	return nil
}

// GoBack navigates to the previous page in history.
func (d *PlaywrightDriver) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.GoBack(); err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	return nil
}

// Close closes the page, context, browser and Playwright. Safe to call multiple times.
func (d *PlaywrightDriver) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := d.context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}
