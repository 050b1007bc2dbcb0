package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvPortalURL      = "DOCFETCH_PORTAL_URL"
	EnvPortalUsername = "DOCFETCH_PORTAL_USERNAME"
	EnvPortalPassword = "DOCFETCH_PORTAL_PASSWORD"
	EnvShareRoot      = "DOCFETCH_SHARE_ROOT"
)

// Config represents the complete docfetch configuration.
type Config struct {
	// Portal holds the credentials and page selectors of the target portal
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Browser controls which automation driver is used and how it is launched
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Timeouts bounds every wait performed against the portal
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Output describes where exported documents are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Mirror optionally copies exported documents to object storage
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`

	// Batch limits accepted batch requests
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Reports configures the per-batch report artifacts
	Reports ReportConfig `yaml:"reports" json:"reports"`

	// Server configures the HTTP service
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Credentials identify the portal account used for a batch.
type Credentials struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// PortalConfig defines the portal account and the selectors used to drive it.
type PortalConfig struct {
	Credentials `yaml:",inline"`
	Selectors   Selectors `yaml:"selectors" json:"selectors"`
}

// Selectors are the CSS selectors of the portal elements the batch interacts with.
type Selectors struct {
	UsernameInput   string `yaml:"username_input" json:"username_input"`
	PasswordInput   string `yaml:"password_input" json:"password_input"`
	LoginButton     string `yaml:"login_button" json:"login_button"`
	SearchInput     string `yaml:"search_input" json:"search_input"`
	SearchButton    string `yaml:"search_button" json:"search_button"`
	ResultIndicator string `yaml:"result_indicator" json:"result_indicator"`
	ReadyIndicator  string `yaml:"ready_indicator" json:"ready_indicator"`
}

// BrowserConfig selects and tunes the browser automation driver.
type BrowserConfig struct {
	// Driver is either "playwright" or "rod"
	Driver   string `yaml:"driver" json:"driver"`
	Headless bool   `yaml:"headless" json:"headless"`

	// Install downloads the Playwright browsers on first launch
	Install bool `yaml:"install" json:"install"`

	// BinaryPath points the rod launcher at a specific Chrome binary
	BinaryPath string `yaml:"binary_path" json:"binary_path"`

	ViewportWidth  int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height" json:"viewport_height"`

	// TypeDelay is the pause between key presses when typing an identifier
	TypeDelay time.Duration `yaml:"type_delay" json:"type_delay"`
}

// TimeoutConfig holds the bounded waits of the login, item and recovery sequences.
type TimeoutConfig struct {
	Navigation time.Duration `yaml:"navigation" json:"navigation"`
	Login      time.Duration `yaml:"login" json:"login"`
	Element    time.Duration `yaml:"element" json:"element"`
	Result     time.Duration `yaml:"result" json:"result"`
	Ready      time.Duration `yaml:"ready" json:"ready"`
	Recovery   time.Duration `yaml:"recovery" json:"recovery"`
}

// OutputConfig defines the destination share layout.
type OutputConfig struct {
	// ShareRoot is the mounted share address documents are written under
	ShareRoot string `yaml:"share_root" json:"share_root"`

	// Subpath segments sit between the share root and the date partition
	Subpath []string `yaml:"subpath" json:"subpath"`

	// Extension of exported documents, without the dot
	Extension string `yaml:"extension" json:"extension"`
}

// MirrorConfig configures the optional S3-compatible mirror.
type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// BatchConfig limits what a single batch request may contain.
type BatchConfig struct {
	MaxItems int `yaml:"max_items" json:"max_items"`

	// IdentifierPatterns are glob patterns; when set, every identifier must match one
	IdentifierPatterns []string `yaml:"identifier_patterns" json:"identifier_patterns"`
}

// ReportConfig defines report artifact generation.
type ReportConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 int           `yaml:"port" json:"port"`
	ReadTimeout          time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	StaticDir            string        `yaml:"static_dir" json:"static_dir"`
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches" json:"max_concurrent_batches"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Env selects the encoder: prod (JSON) or local/dev (console)
	Env string `yaml:"env" json:"env"`

	// Level overrides the default level: debug, info, warn, error
	Level string `yaml:"level" json:"level"`

	// Dir, when set, also writes a per-run log file there
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns a configuration with every optional value populated.
// Portal credentials and the share root have no defaults.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			Selectors: DefaultSelectors(),
		},
		Browser: BrowserConfig{
			Driver:         "playwright",
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			TypeDelay:      50 * time.Millisecond,
		},
		Timeouts: TimeoutConfig{
			Navigation: 30 * time.Second,
			Login:      30 * time.Second,
			Element:    10 * time.Second,
			Result:     10 * time.Second,
			Ready:      10 * time.Second,
			Recovery:   10 * time.Second,
		},
		Output: OutputConfig{
			Extension: "pdf",
		},
		Batch: BatchConfig{
			MaxItems: 500,
		},
		Reports: ReportConfig{
			Enabled:   true,
			OutputDir: ".docfetch/reports",
		},
		Server: ServerConfig{
			Port:                 4500,
			ReadTimeout:          10 * time.Second,
			WriteTimeout:         30 * time.Minute,
			ShutdownTimeout:      30 * time.Second,
			MaxConcurrentBatches: 1,
		},
		Logging: LoggingConfig{
			Env:   "local",
			Level: "info",
		},
	}
}

// DefaultSelectors returns the selectors of the intranet portal docfetch was built for.
func DefaultSelectors() Selectors {
	return Selectors{
		UsernameInput:   "input[name='UserName']",
		PasswordInput:   "input[name='UserPass']",
		LoginButton:     "#Submit1",
		SearchInput:     "#ContentPlaceHolder1_TextBox0",
		SearchButton:    "#ContentPlaceHolder1_Button2",
		ResultIndicator: ".c18",
		ReadyIndicator:  ".card-body",
	}
}

// Load reads the YAML file at path (if any), applies environment overrides,
// fills defaults and validates the result. A missing required value yields a
// *ConfigurationError.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPortalURL); ok && v != "" {
		c.Portal.URL = v
	}
	if v, ok := lookup(EnvPortalUsername); ok && v != "" {
		c.Portal.Username = v
	}
	if v, ok := lookup(EnvPortalPassword); ok && v != "" {
		c.Portal.Password = v
	}
	if v, ok := lookup(EnvShareRoot); ok && v != "" {
		c.Output.ShareRoot = v
	}
}

// ApplyDefaults fills zero values left behind by a partial config file.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	sel := &c.Portal.Selectors
	fillString(&sel.UsernameInput, def.Portal.Selectors.UsernameInput)
	fillString(&sel.PasswordInput, def.Portal.Selectors.PasswordInput)
	fillString(&sel.LoginButton, def.Portal.Selectors.LoginButton)
	fillString(&sel.SearchInput, def.Portal.Selectors.SearchInput)
	fillString(&sel.SearchButton, def.Portal.Selectors.SearchButton)
	fillString(&sel.ResultIndicator, def.Portal.Selectors.ResultIndicator)
	fillString(&sel.ReadyIndicator, def.Portal.Selectors.ReadyIndicator)

	fillString(&c.Browser.Driver, def.Browser.Driver)
	fillInt(&c.Browser.ViewportWidth, def.Browser.ViewportWidth)
	fillInt(&c.Browser.ViewportHeight, def.Browser.ViewportHeight)

	fillDuration(&c.Timeouts.Navigation, def.Timeouts.Navigation)
	fillDuration(&c.Timeouts.Login, def.Timeouts.Login)
	fillDuration(&c.Timeouts.Element, def.Timeouts.Element)
	fillDuration(&c.Timeouts.Result, def.Timeouts.Result)
	fillDuration(&c.Timeouts.Ready, def.Timeouts.Ready)
	fillDuration(&c.Timeouts.Recovery, def.Timeouts.Recovery)

	c.Output.Extension = strings.TrimPrefix(c.Output.Extension, ".")
	fillString(&c.Output.Extension, def.Output.Extension)

	fillInt(&c.Batch.MaxItems, def.Batch.MaxItems)
	fillString(&c.Reports.OutputDir, def.Reports.OutputDir)

	fillInt(&c.Server.Port, def.Server.Port)
	fillDuration(&c.Server.ReadTimeout, def.Server.ReadTimeout)
	fillDuration(&c.Server.WriteTimeout, def.Server.WriteTimeout)
	fillDuration(&c.Server.ShutdownTimeout, def.Server.ShutdownTimeout)
	fillInt(&c.Server.MaxConcurrentBatches, def.Server.MaxConcurrentBatches)

	fillString(&c.Logging.Env, def.Logging.Env)
}

// Validate checks that every required value is present and every optional one is sane.
func (c *Config) Validate() error {
	cerr := &ConfigurationError{}

	if c.Portal.URL == "" {
		cerr.Missing = append(cerr.Missing, "portal.url")
	}
	if c.Portal.Username == "" {
		cerr.Missing = append(cerr.Missing, "portal.username")
	}
	if c.Portal.Password == "" {
		cerr.Missing = append(cerr.Missing, "portal.password")
	}
	if c.Output.ShareRoot == "" {
		cerr.Missing = append(cerr.Missing, "output.share_root")
	}

	switch c.Browser.Driver {
	case "playwright":
		// Chromium only prints to PDF when headless
		if !c.Browser.Headless {
			cerr.Invalid = append(cerr.Invalid,
				"browser.headless must be true with the playwright driver, use 'rod' for a visible browser")
		}
	case "rod":
	default:
		cerr.Invalid = append(cerr.Invalid,
			fmt.Sprintf("browser.driver must be 'playwright' or 'rod', got %q", c.Browser.Driver))
	}

	if c.Browser.TypeDelay < 0 {
		cerr.Invalid = append(cerr.Invalid, "browser.type_delay cannot be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		cerr.Invalid = append(cerr.Invalid,
			fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Mirror.Enabled {
		if c.Mirror.Endpoint == "" {
			cerr.Missing = append(cerr.Missing, "mirror.endpoint")
		}
		if c.Mirror.Bucket == "" {
			cerr.Missing = append(cerr.Missing, "mirror.bucket")
		}
		if c.Mirror.AccessKeyID == "" || c.Mirror.SecretAccessKey == "" {
			cerr.Missing = append(cerr.Missing, "mirror.access_key_id/secret_access_key")
		}
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		cerr.Invalid = append(cerr.Invalid,
			fmt.Sprintf("invalid logging level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level))
	}

	if cerr.empty() {
		return nil
	}
	return cerr
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string so validation reports them.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func fillDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
