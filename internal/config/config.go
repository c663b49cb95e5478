// Package config provides configuration management for hdaget.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/eodata/hdaget/internal/constants"
)

// Config holds every knob of a broker session.
//
// Config file location:
//   - Unix: ~/.config/hdaget/config.ini
//   - Windows: %APPDATA%\hdaget\config.ini
//
// INI format:
//
//	[broker]
//	url = https://wekeo-broker.prod.wekeo2.eu/databroker
//	dataset_id = EO:ESA:DAT:SENTINEL-3:SR_2_WAT___
//	terms_id = Copernicus_General_License
//	username = alice
//	password = secret
//	page_size = 5
//	all_pages = false
//	rate_limit = 5
//	max_retries = 5
//
//	[download]
//	dir = ./downloads
//	extension = .zip
//	name =
//	overwrite = false
//
//	[poll]
//	fast_attempts = 20
//	interval = 5s
//	multiplier = 1.5
//	max_interval = 60s
//	max_attempts = 0
//	timeout = 1h
//	max_consecutive_errors = 5
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	password =
//	no_proxy =
//	warmup = false
//
//	[metrics]
//	push_url =
//	job = hdaget
//
//	[publish]
//	target = s3://bucket/prefix
//
//	[log]
//	file =
//	level = info
type Config struct {
	// Broker connection
	BrokerURL  string
	DatasetID  string
	TermsID    string
	Username   string
	Password   string
	APIKey     string // base64 "username:password"
	PageSize   int
	AllPages   bool
	RateLimit  float64 // requests per second, 0 disables limiting
	MaxRetries int

	// Download target
	DownloadDir  string
	Extension    string
	NameOverride string
	Overwrite    bool

	Poll PollConfig

	// Proxy settings
	ProxyMode     string // no-proxy, system, basic, ntlm
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string
	ProxyWarmup   bool

	// Metrics
	MetricsPushURL string
	MetricsJob     string

	// PublishTarget is an s3:// or Azure blob container URL; empty disables publishing.
	PublishTarget string

	// Logging
	LogFile  string
	LogLevel string
}

// PollConfig describes the bounded status polling policy.
type PollConfig struct {
	FastAttempts         int
	Interval             time.Duration
	Multiplier           float64
	MaxInterval          time.Duration
	MaxAttempts          int
	Timeout              time.Duration
	MaxConsecutiveErrors int
}

// Validation errors
var (
	ErrMissingBrokerURL   = errors.New("broker url is required")
	ErrMissingCredentials = errors.New("credentials are required (api key, or username and password)")
	ErrMissingDatasetID   = errors.New("dataset_id is required")
	ErrInvalidPageSize    = fmt.Errorf("page_size must be between 1 and %d", constants.MaxPageSize)
	ErrInvalidPollPolicy  = errors.New("poll policy needs a positive interval and either max_attempts or timeout")
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		BrokerURL:   constants.DefaultBrokerURL,
		TermsID:     constants.DefaultTermsID,
		PageSize:    constants.DefaultPageSize,
		RateLimit:   constants.APIRatePerSec,
		MaxRetries:  constants.MaxRetries,
		DownloadDir: ".",
		Poll:        DefaultPollConfig(),
		ProxyMode:   "no-proxy",
		MetricsJob:  "hdaget",
		LogLevel:    "info",
	}
}

// DefaultPollConfig returns the default bounded polling policy.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		FastAttempts:         constants.PollFastAttempts,
		Interval:             constants.PollInterval,
		Multiplier:           constants.PollMultiplier,
		MaxInterval:          constants.PollMaxInterval,
		Timeout:              constants.PollTimeout,
		MaxConsecutiveErrors: constants.PollMaxConsecutiveErrors,
	}
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	broker := iniFile.Section("broker")
	cfg.BrokerURL = broker.Key("url").MustString(cfg.BrokerURL)
	cfg.DatasetID = broker.Key("dataset_id").String()
	cfg.TermsID = broker.Key("terms_id").MustString(cfg.TermsID)
	cfg.Username = broker.Key("username").String()
	cfg.Password = broker.Key("password").String()
	cfg.APIKey = broker.Key("api_key").String()
	cfg.PageSize = broker.Key("page_size").MustInt(cfg.PageSize)
	cfg.AllPages = broker.Key("all_pages").MustBool(false)
	cfg.RateLimit = broker.Key("rate_limit").MustFloat64(cfg.RateLimit)
	cfg.MaxRetries = broker.Key("max_retries").MustInt(cfg.MaxRetries)

	download := iniFile.Section("download")
	cfg.DownloadDir = download.Key("dir").MustString(cfg.DownloadDir)
	cfg.Extension = download.Key("extension").String()
	cfg.NameOverride = download.Key("name").String()
	cfg.Overwrite = download.Key("overwrite").MustBool(false)

	poll := iniFile.Section("poll")
	cfg.Poll.FastAttempts = poll.Key("fast_attempts").MustInt(cfg.Poll.FastAttempts)
	cfg.Poll.Interval = poll.Key("interval").MustDuration(cfg.Poll.Interval)
	cfg.Poll.Multiplier = poll.Key("multiplier").MustFloat64(cfg.Poll.Multiplier)
	cfg.Poll.MaxInterval = poll.Key("max_interval").MustDuration(cfg.Poll.MaxInterval)
	cfg.Poll.MaxAttempts = poll.Key("max_attempts").MustInt(cfg.Poll.MaxAttempts)
	cfg.Poll.Timeout = poll.Key("timeout").MustDuration(cfg.Poll.Timeout)
	cfg.Poll.MaxConsecutiveErrors = poll.Key("max_consecutive_errors").MustInt(cfg.Poll.MaxConsecutiveErrors)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	metrics := iniFile.Section("metrics")
	cfg.MetricsPushURL = metrics.Key("push_url").String()
	cfg.MetricsJob = metrics.Key("job").MustString(cfg.MetricsJob)

	cfg.PublishTarget = iniFile.Section("publish").Key("target").String()

	logSection := iniFile.Section("log")
	cfg.LogFile = logSection.Key("file").String()
	cfg.LogLevel = logSection.Key("level").MustString(cfg.LogLevel)

	return cfg, nil
}

// Save writes configuration to an INI file.
// Creates parent directories if they don't exist. The password is never written;
// the encoded api key is, so the file is kept at 0600.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return fmt.Errorf("could not determine config path")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"broker", [][2]string{
			{"url", cfg.BrokerURL},
			{"dataset_id", cfg.DatasetID},
			{"terms_id", cfg.TermsID},
			{"username", cfg.Username},
			{"api_key", cfg.APIKey},
			{"page_size", strconv.Itoa(cfg.PageSize)},
			{"all_pages", strconv.FormatBool(cfg.AllPages)},
			{"rate_limit", strconv.FormatFloat(cfg.RateLimit, 'g', -1, 64)},
			{"max_retries", strconv.Itoa(cfg.MaxRetries)},
		}},
		{"download", [][2]string{
			{"dir", cfg.DownloadDir},
			{"extension", cfg.Extension},
			{"name", cfg.NameOverride},
			{"overwrite", strconv.FormatBool(cfg.Overwrite)},
		}},
		{"poll", [][2]string{
			{"fast_attempts", strconv.Itoa(cfg.Poll.FastAttempts)},
			{"interval", cfg.Poll.Interval.String()},
			{"multiplier", strconv.FormatFloat(cfg.Poll.Multiplier, 'g', -1, 64)},
			{"max_interval", cfg.Poll.MaxInterval.String()},
			{"max_attempts", strconv.Itoa(cfg.Poll.MaxAttempts)},
			{"timeout", cfg.Poll.Timeout.String()},
			{"max_consecutive_errors", strconv.Itoa(cfg.Poll.MaxConsecutiveErrors)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", strconv.Itoa(cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", strconv.FormatBool(cfg.ProxyWarmup)},
		}},
		{"metrics", [][2]string{
			{"push_url", cfg.MetricsPushURL},
			{"job", cfg.MetricsJob},
		}},
		{"publish", [][2]string{
			{"target", cfg.PublishTarget},
		}},
		{"log", [][2]string{
			{"file", cfg.LogFile},
			{"level", cfg.LogLevel},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks that the configuration can drive a broker session.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BrokerURL) == "" {
		return ErrMissingBrokerURL
	}
	if c.APIKey == "" && (c.Username == "" || c.Password == "") {
		return ErrMissingCredentials
	}
	if c.PageSize < 1 || c.PageSize > constants.MaxPageSize {
		return ErrInvalidPageSize
	}
	if c.Poll.Interval <= 0 || (c.Poll.MaxAttempts <= 0 && c.Poll.Timeout <= 0) {
		return ErrInvalidPollPolicy
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// ValidateForQuery additionally requires a dataset id.
func (c *Config) ValidateForQuery() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DatasetID) == "" {
		return ErrMissingDatasetID
	}
	return nil
}

// BaseURL returns the broker URL with scheme ensured and no trailing slash.
func (c *Config) BaseURL() string {
	u := strings.TrimSuffix(strings.TrimSpace(c.BrokerURL), "/")
	if u != "" && !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}
