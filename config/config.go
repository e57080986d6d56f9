package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string `yaml:"server.port"`

	// OAuth client and token storage
	ClientSecretsPath string `yaml:"credentials.client_secrets_path"`
	TokensDir         string `yaml:"credentials.tokens_dir"`

	// Browser automation
	ProfilesDir     string `yaml:"browser.profiles_dir"`
	BrowserHeadless bool   `yaml:"browser.headless"`
	ChromePath      string `yaml:"browser.chrome_path"`
	UserAgent       string `yaml:"browser.user_agent"`

	LaunchTimeout        time.Duration `yaml:"-"`
	LaunchTimeoutStr     string        `yaml:"browser.launch_timeout"`
	NavigationTimeout    time.Duration `yaml:"-"`
	NavigationTimeoutStr string        `yaml:"browser.navigation_timeout"`
	LocateTimeout        time.Duration `yaml:"-"`
	LocateTimeoutStr     string        `yaml:"browser.locate_timeout"`
	ScanTimeout          time.Duration `yaml:"-"`
	ScanTimeoutStr       string        `yaml:"browser.scan_timeout"`
	ConfirmTimeout       time.Duration `yaml:"-"`
	ConfirmTimeoutStr    string        `yaml:"browser.confirm_timeout"`
	IdleWait             time.Duration `yaml:"-"`
	IdleWaitStr          string        `yaml:"browser.idle_wait"`
	SignInTimeout        time.Duration `yaml:"-"`
	SignInTimeoutStr     string        `yaml:"browser.sign_in_timeout"`

	// Pacing between consecutive accounts
	PacingDelay     time.Duration `yaml:"-"`
	PacingDelayStr  string        `yaml:"pacing.delay"`
	PacingJitter    time.Duration `yaml:"-"`
	PacingJitterStr string        `yaml:"pacing.jitter"`

	// Retry of transient browser failures (0 disables)
	RetryMaxRetries     int           `yaml:"retry.max_retries"`
	RetryInitialWait    time.Duration `yaml:"-"`
	RetryInitialWaitStr string        `yaml:"retry.initial_wait"`
	RetryMaxWait        time.Duration `yaml:"-"`
	RetryMaxWaitStr     string        `yaml:"retry.max_wait"`

	// Database configuration
	DatabaseURL string `yaml:"database.url"`

	// Performance tuning
	HTTPClientTimeout    time.Duration `yaml:"-"`
	HTTPClientTimeoutStr string        `yaml:"performance.http_client_timeout"`
	MaxIdleConns         int           `yaml:"performance.max_idle_conns"`
	MaxConnsPerHost      int           `yaml:"performance.max_conns_per_host"`

	// Logging configuration
	LogDirectory  string `yaml:"logging.dir"`
	LogOutputFile string `yaml:"logging.output_file"`
	LogErrorFile  string `yaml:"logging.error_file"`

	// Scheduled batches
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule defines a batch fired by the cron scheduler
type Schedule struct {
	Name string `yaml:"name"`
	Cron string `yaml:"cron"`

	// Action is "comment" or "like"
	Action string `yaml:"action"`

	// Accounts to act with; empty means every authenticated account
	Accounts []string `yaml:"accounts,omitempty"`

	// Target is the video input for comments or the comment URL for likes
	Target string `yaml:"target"`
	Text   string `yaml:"text,omitempty"`

	Delay    time.Duration `yaml:"-"`
	DelayStr string        `yaml:"delay,omitempty"`
}

// MemoryDatabase selects the in-memory run journal
const MemoryDatabase = "memory"

// Defaults used when a value is missing from the file
const (
	defaultServerPort        = "8080"
	defaultClientSecretsPath = "credentials.json"
	defaultTokensDir         = "./tokens"
	defaultProfilesDir       = "./profiles"
	defaultDatabaseURL       = "sqlite3:./data.db"
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	defaultLaunchTimeout     = 30 * time.Second
	defaultNavigationTimeout = 60 * time.Second
	defaultLocateTimeout     = 10 * time.Second
	defaultScanTimeout       = 20 * time.Second
	defaultConfirmTimeout    = 5 * time.Second
	defaultIdleWait          = 5 * time.Second
	defaultSignInTimeout     = 5 * time.Minute
	defaultRetryInitialWait  = 5 * time.Second
	defaultRetryMaxWait      = time.Minute
	defaultHTTPClientTimeout = 30 * time.Second
	defaultMaxIdleConns      = 20
	defaultMaxConnsPerHost   = 10
)

// configFile represents the YAML structure
type configFile struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Credentials struct {
		ClientSecretsPath string `yaml:"client_secrets_path"`
		TokensDir         string `yaml:"tokens_dir"`
	} `yaml:"credentials"`
	Browser struct {
		ProfilesDir       string `yaml:"profiles_dir"`
		Headless          bool   `yaml:"headless"`
		ChromePath        string `yaml:"chrome_path,omitempty"`
		UserAgent         string `yaml:"user_agent"`
		LaunchTimeout     string `yaml:"launch_timeout"`
		NavigationTimeout string `yaml:"navigation_timeout"`
		LocateTimeout     string `yaml:"locate_timeout"`
		ScanTimeout       string `yaml:"scan_timeout"`
		ConfirmTimeout    string `yaml:"confirm_timeout"`
		IdleWait          string `yaml:"idle_wait"`
		SignInTimeout     string `yaml:"sign_in_timeout"`
	} `yaml:"browser"`
	Pacing struct {
		Delay  string `yaml:"delay"`
		Jitter string `yaml:"jitter"`
	} `yaml:"pacing"`
	Retry struct {
		MaxRetries  int    `yaml:"max_retries"`
		InitialWait string `yaml:"initial_wait"`
		MaxWait     string `yaml:"max_wait"`
	} `yaml:"retry"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Performance struct {
		HTTPClientTimeout string `yaml:"http_client_timeout"`
		MaxIdleConns      int    `yaml:"max_idle_conns"`
		MaxConnsPerHost   int    `yaml:"max_conns_per_host"`
	} `yaml:"performance"`
	Logging struct {
		Directory  string `yaml:"dir"`
		OutputFile string `yaml:"output_file"`
		ErrorFile  string `yaml:"error_file"`
	} `yaml:"logging"`
	Schedules []Schedule `yaml:"schedules,omitempty"`
}

// Manager handles configuration loading and saving
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return &Manager{
		configPath: configPath,
	}
}

// Path returns the file the manager reads and writes
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads configuration from YAML file
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		// If file doesn't exist, create default config
		if os.IsNotExist(err) {
			return m.createDefaultConfig()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(data, &cfgFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &Config{
		ServerPort:           cfgFile.Server.Port,
		ClientSecretsPath:    cfgFile.Credentials.ClientSecretsPath,
		TokensDir:            cfgFile.Credentials.TokensDir,
		ProfilesDir:          cfgFile.Browser.ProfilesDir,
		BrowserHeadless:      cfgFile.Browser.Headless,
		ChromePath:           cfgFile.Browser.ChromePath,
		UserAgent:            cfgFile.Browser.UserAgent,
		LaunchTimeoutStr:     cfgFile.Browser.LaunchTimeout,
		NavigationTimeoutStr: cfgFile.Browser.NavigationTimeout,
		LocateTimeoutStr:     cfgFile.Browser.LocateTimeout,
		ScanTimeoutStr:       cfgFile.Browser.ScanTimeout,
		ConfirmTimeoutStr:    cfgFile.Browser.ConfirmTimeout,
		IdleWaitStr:          cfgFile.Browser.IdleWait,
		SignInTimeoutStr:     cfgFile.Browser.SignInTimeout,
		PacingDelayStr:       cfgFile.Pacing.Delay,
		PacingJitterStr:      cfgFile.Pacing.Jitter,
		RetryMaxRetries:      cfgFile.Retry.MaxRetries,
		RetryInitialWaitStr:  cfgFile.Retry.InitialWait,
		RetryMaxWaitStr:      cfgFile.Retry.MaxWait,
		DatabaseURL:          cfgFile.Database.URL,
		HTTPClientTimeoutStr: cfgFile.Performance.HTTPClientTimeout,
		MaxIdleConns:         cfgFile.Performance.MaxIdleConns,
		MaxConnsPerHost:      cfgFile.Performance.MaxConnsPerHost,
		LogDirectory:         cfgFile.Logging.Directory,
		LogOutputFile:        cfgFile.Logging.OutputFile,
		LogErrorFile:         cfgFile.Logging.ErrorFile,
		Schedules:            cfgFile.Schedules,
	}

	// Set defaults if empty
	if cfg.ServerPort == "" {
		cfg.ServerPort = defaultServerPort
	}
	if cfg.ClientSecretsPath == "" {
		cfg.ClientSecretsPath = defaultClientSecretsPath
	}
	if cfg.TokensDir == "" {
		cfg.TokensDir = defaultTokensDir
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = defaultProfilesDir
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = "./logs"
	}
	if cfg.LogOutputFile == "" {
		cfg.LogOutputFile = "app.log"
	}
	if cfg.LogErrorFile == "" {
		cfg.LogErrorFile = "app.error.log"
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if cfg.RetryMaxRetries < 0 {
		cfg.RetryMaxRetries = 0
	}

	// Parse durations
	cfg.LaunchTimeout = parseDuration(cfg.LaunchTimeoutStr, defaultLaunchTimeout)
	cfg.NavigationTimeout = parseDuration(cfg.NavigationTimeoutStr, defaultNavigationTimeout)
	cfg.LocateTimeout = parseDuration(cfg.LocateTimeoutStr, defaultLocateTimeout)
	cfg.ScanTimeout = parseDuration(cfg.ScanTimeoutStr, defaultScanTimeout)
	cfg.ConfirmTimeout = parseDuration(cfg.ConfirmTimeoutStr, defaultConfirmTimeout)
	cfg.IdleWait = parseDuration(cfg.IdleWaitStr, defaultIdleWait)
	cfg.SignInTimeout = parseDuration(cfg.SignInTimeoutStr, defaultSignInTimeout)
	cfg.PacingDelay = parseDuration(cfg.PacingDelayStr, 0)
	cfg.PacingJitter = parseDuration(cfg.PacingJitterStr, 0)
	cfg.RetryInitialWait = parseDuration(cfg.RetryInitialWaitStr, defaultRetryInitialWait)
	cfg.RetryMaxWait = parseDuration(cfg.RetryMaxWaitStr, defaultRetryMaxWait)
	cfg.HTTPClientTimeout = parseDuration(cfg.HTTPClientTimeoutStr, defaultHTTPClientTimeout)

	for i := range cfg.Schedules {
		s := &cfg.Schedules[i]
		s.Action = strings.ToLower(strings.TrimSpace(s.Action))
		s.Delay = parseDuration(s.DelayStr, cfg.PacingDelay)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.config = cfg
	return cfg, nil
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		if seen[name] {
			return fmt.Errorf("schedule %s: duplicate name", name)
		}
		seen[name] = true

		if strings.TrimSpace(s.Cron) == "" {
			return fmt.Errorf("schedule %s: cron expression is required", name)
		}
		if strings.TrimSpace(s.Target) == "" {
			return fmt.Errorf("schedule %s: target is required", name)
		}
		switch s.Action {
		case "comment":
			if strings.TrimSpace(s.Text) == "" {
				return fmt.Errorf("schedule %s: comment text is required", name)
			}
		case "like":
		default:
			return fmt.Errorf("schedule %s: unknown action %q", name, s.Action)
		}
	}
	return nil
}

// parseDuration returns def when s is empty or malformed
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Save writes configuration to YAML file
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveUnlocked(cfg)
}

// saveUnlocked persists config assuming caller already holds the write lock.
func (m *Manager) saveUnlocked(cfg *Config) error {
	var cfgFile configFile
	cfgFile.Server.Port = cfg.ServerPort
	cfgFile.Credentials.ClientSecretsPath = cfg.ClientSecretsPath
	cfgFile.Credentials.TokensDir = cfg.TokensDir
	cfgFile.Browser.ProfilesDir = cfg.ProfilesDir
	cfgFile.Browser.Headless = cfg.BrowserHeadless
	cfgFile.Browser.ChromePath = cfg.ChromePath
	cfgFile.Browser.UserAgent = cfg.UserAgent
	cfgFile.Browser.LaunchTimeout = cfg.LaunchTimeout.String()
	cfgFile.Browser.NavigationTimeout = cfg.NavigationTimeout.String()
	cfgFile.Browser.LocateTimeout = cfg.LocateTimeout.String()
	cfgFile.Browser.ScanTimeout = cfg.ScanTimeout.String()
	cfgFile.Browser.ConfirmTimeout = cfg.ConfirmTimeout.String()
	cfgFile.Browser.IdleWait = cfg.IdleWait.String()
	cfgFile.Browser.SignInTimeout = cfg.SignInTimeout.String()
	cfgFile.Pacing.Delay = cfg.PacingDelay.String()
	cfgFile.Pacing.Jitter = cfg.PacingJitter.String()
	cfgFile.Retry.MaxRetries = cfg.RetryMaxRetries
	cfgFile.Retry.InitialWait = cfg.RetryInitialWait.String()
	cfgFile.Retry.MaxWait = cfg.RetryMaxWait.String()
	cfgFile.Database.URL = cfg.DatabaseURL
	cfgFile.Performance.HTTPClientTimeout = cfg.HTTPClientTimeout.String()
	cfgFile.Performance.MaxIdleConns = cfg.MaxIdleConns
	cfgFile.Performance.MaxConnsPerHost = cfg.MaxConnsPerHost
	cfgFile.Logging.Directory = cfg.LogDirectory
	cfgFile.Logging.OutputFile = cfg.LogOutputFile
	cfgFile.Logging.ErrorFile = cfg.LogErrorFile

	for _, s := range cfg.Schedules {
		if s.DelayStr == "" && s.Delay > 0 {
			s.DelayStr = s.Delay.String()
		}
		cfgFile.Schedules = append(cfgFile.Schedules, s)
	}

	data, err := yaml.Marshal(&cfgFile)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.config = cfg
	return nil
}

// Get returns the current configuration (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig() (*Config, error) {
	cfg := Default()

	// Save default config to file
	if err := m.saveUnlocked(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		ServerPort:        defaultServerPort,
		ClientSecretsPath: defaultClientSecretsPath,
		TokensDir:         defaultTokensDir,
		ProfilesDir:       defaultProfilesDir,
		UserAgent:         defaultUserAgent,
		LaunchTimeout:     defaultLaunchTimeout,
		NavigationTimeout: defaultNavigationTimeout,
		LocateTimeout:     defaultLocateTimeout,
		ScanTimeout:       defaultScanTimeout,
		ConfirmTimeout:    defaultConfirmTimeout,
		IdleWait:          defaultIdleWait,
		SignInTimeout:     defaultSignInTimeout,
		RetryInitialWait:  defaultRetryInitialWait,
		RetryMaxWait:      defaultRetryMaxWait,
		DatabaseURL:       defaultDatabaseURL,
		HTTPClientTimeout: defaultHTTPClientTimeout,
		MaxIdleConns:      defaultMaxIdleConns,
		MaxConnsPerHost:   defaultMaxConnsPerHost,
		LogDirectory:      "./logs",
		LogOutputFile:     "app.log",
		LogErrorFile:      "app.error.log",
	}
}

// Global config manager instance
var globalManager *Manager

// Load loads configuration from the default location
func Load() (*Config, error) {
	return GetManager().Load()
}

// GetManager returns the global config manager
func GetManager() *Manager {
	if globalManager == nil {
		configPath := "config.yaml"
		// Check if config/config.yaml exists, if so use it as default
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
		globalManager = NewManager(configPath)
	}
	return globalManager
}

// UseManager replaces the global manager, e.g. for a -config flag
func UseManager(m *Manager) {
	globalManager = m
}
