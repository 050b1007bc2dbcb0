// Package browser provides the browser automation capabilities docfetch drives a
// portal with.
//
// The batch core only depends on the Driver interface: navigate, wait for an
// element to become visible, type, click, export the current page as a document,
// go back and close. Two implementations are provided:
//
//   - Playwright (playwright-go), the default. Chromium is launched per session
//     and pages are exported with Page.PDF.
//   - Rod (go-rod), driving Chrome over the DevTools protocol.
//
// # Session Lifecycle
//
// A Launcher produces one Driver per batch. The Driver owns the browser process,
// its context and its single page; Close releases all of them. Drivers are not
// safe for concurrent use: one batch, one goroutine, one driver.
//
// # Example Usage
//
//	launcher, err := browser.NewLauncher(browser.Options{
//	    Driver:   browser.DriverPlaywright,
//	    Headless: true,
//	})
//	drv, err := launcher.Launch(ctx)
//	defer drv.Close()
//
//	err = drv.Navigate(ctx, "https://portal.example.com")
//	err = drv.WaitVisible(ctx, ".card-body", 10*time.Second)
//	err = drv.ExportPage(ctx, "/mnt/share/2026/01/02/A001.pdf")
package browser
