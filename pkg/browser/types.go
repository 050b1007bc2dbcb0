package browser

import (
	"context"
	"fmt"
	"time"
)

// Driver is the set of page operations a batch needs from a browser.
type Driver interface {
	// Navigate loads url in the current page
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until selector matches a visible element or timeout elapses
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Type sends text to the element matching selector, pausing delay between keys
	Type(ctx context.Context, selector, text string, delay time.Duration) error

	// Click clicks the element matching selector count times (3 selects its content)
	Click(ctx context.Context, selector string, count int) error

	// ExportPage renders the current page as a PDF document at path
	ExportPage(ctx context.Context, path string) error

	// GoBack navigates to the previous history entry
	GoBack(ctx context.Context) error

	// Close releases the page, its context and the browser process
	Close() error
}

// Launcher starts a browser and returns a Driver bound to a fresh page.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}

// Driver names accepted by NewLauncher.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Options configures a launcher.
type Options struct {
	// Driver selects the implementation (DriverPlaywright or DriverRod)
	Driver string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Install downloads Playwright browsers before the first launch
	Install bool

	// BinaryPath optionally points rod at a Chrome binary
	BinaryPath string

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// NavigationTimeout bounds page loads and is the page's default timeout
	NavigationTimeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for launch options
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
)

// NewLauncher returns the launcher for opts.Driver.
func NewLauncher(opts Options) (Launcher, error) {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}

	switch opts.Driver {
	case "", DriverPlaywright:
		return NewPlaywrightLauncher(opts), nil
	case DriverRod:
		return NewRodLauncher(opts), nil
	default:
		return nil, fmt.Errorf("unsupported browser driver: %s", opts.Driver)
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
