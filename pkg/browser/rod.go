package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher launches Chrome and drives it over the DevTools protocol.
type RodLauncher struct {
	opts Options
}

// NewRodLauncher creates a new rod launcher.
func NewRodLauncher(opts Options) *RodLauncher {
	return &RodLauncher{opts: opts}
}

// Launch starts a Chrome process, connects to it and opens a blank page.
func (l *RodLauncher) Launch(ctx context.Context) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proc := launcher.New().Headless(l.opts.Headless)
	if l.opts.BinaryPath != "" {
		proc = proc.Bin(l.opts.BinaryPath)
	}

	controlURL, err := proc.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		stopChrome(proc)
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		stopChrome(proc)
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.opts.Viewport.Width,
		Height:            l.opts.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = browser.Close()
		stopChrome(proc)
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	return &RodDriver{
		proc:    proc,
		browser: browser,
		page:    page,
		timeout: l.opts.NavigationTimeout,
	}, nil
}

// chromeProcess is the part of *launcher.Launcher that owns the Chrome process
// and its temporary profile directory.
type chromeProcess interface {
	Kill()
	Cleanup()
}

// stopChrome kills the process and removes the user data dir the launcher created.
func stopChrome(p chromeProcess) {
	p.Kill()
	p.Cleanup()
}

// RodDriver implements Driver on a single rod page.
type RodDriver struct {
	proc    chromeProcess
	browser *rod.Browser
	page    *rod.Page

	// timeout bounds operations that have no explicit timeout of their own
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (d *RodDriver) bounded(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	if timeout <= 0 {
		timeout = d.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return d.page.Context(tctx), cancel
}

// Navigate loads url and waits for the load event.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	page, cancel := d.bounded(ctx, 0)
	defer cancel()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitVisible waits for selector to exist and become visible.
func (d *RodDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page, cancel := d.bounded(ctx, timeout)
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

// Type inputs text into the element, one rune at a time when delay is set.
func (d *RodDriver) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	page, cancel := d.bounded(ctx, 0)
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("type into %s failed: %w", selector, err)
	}

	if delay <= 0 {
		if err := el.Input(text); err != nil {
			return fmt.Errorf("type into %s failed: %w", selector, err)
		}
		return nil
	}

	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("type into %s failed: %w", selector, err)
		}
		time.Sleep(delay)
	}
	return nil
}

// Click clicks the element with the left button count times.
func (d *RodDriver) Click(ctx context.Context, selector string, count int) error {
	page, cancel := d.bounded(ctx, 0)
	defer cancel()

	if count < 1 {
		count = 1
	}

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, count); err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

// ExportPage prints the page to PDF and streams it to path.
func (d *RodDriver) ExportPage(ctx context.Context, path string) error {
	page, cancel := d.bounded(ctx, 0)
	defer cancel()

	stream, err := page.PDF(printOptions())
	if err != nil {
		return fmt.Errorf("pdf export failed: %w", err)
	}

	if err := writeStream(path, stream); err != nil {
		return fmt.Errorf("pdf export failed: %w", err)
	}
	return nil
}

// printOptions matches the Playwright export: A4 with backgrounds.
func printOptions() *proto.PagePrintToPDF {
	width, height := 8.27, 11.69
	return &proto.PagePrintToPDF{
		PaperWidth:      &width,
		PaperHeight:     &height,
		PrintBackground: true,
	}
}

// writeStream copies r to path. A partially written file is removed.
func writeStream(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// GoBack navigates to the previous history entry.
func (d *RodDriver) GoBack(ctx context.Context) error {
	page, cancel := d.bounded(ctx, 0)
	defer cancel()

	if err := page.NavigateBack(); err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	return nil
}

// Close closes the browser, kills the Chrome process and removes its profile
// directory. Safe to call multiple times.
func (d *RodDriver) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.browser != nil {
			if err := d.browser.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		stopChrome(d.proc)
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}
