package config

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvBrokerURL   = "HDA_URL"
	EnvDatasetID   = "HDA_DATASET"
	EnvUsername    = "HDA_USERNAME"
	EnvPassword    = "HDA_PASSWORD"
	EnvAPIKey      = "HDA_API_KEY"
	EnvDownloadDir = "HDA_DOWNLOAD_DIR"
	EnvProfile     = "HDA_ENV"
)

// LoadEnvFiles loads .env files from dir in order of precedence:
// .env, then .env.<HDA_ENV>, then .env.local. Missing files are skipped.
// Later files override earlier ones, but a variable already set in the
// process environment is never overwritten. HDA_ENV may itself come from .env.
func LoadEnvFiles(dir string) error {
	join := func(name string) string {
		if dir == "" {
			return name
		}
		return dir + string(os.PathSeparator) + name
	}

	merged := make(map[string]string)
	read := func(path string) error {
		if !fileExists(path) {
			return nil
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		maps.Copy(merged, values)
		return nil
	}

	if err := read(join(".env")); err != nil {
		return err
	}
	profile := os.Getenv(EnvProfile)
	if profile == "" {
		profile = merged[EnvProfile]
	}
	if profile != "" {
		if err := read(join(".env." + profile)); err != nil {
			return err
		}
	}
	if err := read(join(".env.local")); err != nil {
		return err
	}

	for key, value := range merged {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// MergeEnv applies environment variables over the file values.
func (c *Config) MergeEnv() {
	if v := os.Getenv(EnvBrokerURL); v != "" {
		c.BrokerURL = v
	}
	if v := os.Getenv(EnvDatasetID); v != "" {
		c.DatasetID = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvDownloadDir); v != "" {
		c.DownloadDir = v
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}
}

// Overrides carries command-line flag values. Zero values mean "not set".
type Overrides struct {
	APIKey       string
	KeyFile      string
	BrokerURL    string
	DatasetID    string
	Username     string
	Password     string
	DownloadDir  string
	Extension    string
	NameOverride string
	PageSize     int
	AllPages     bool
	ProxyMode    string
	ProxyHost    string
	ProxyPort    int
	LogFile      string
	PublishTo    string
}

// MergeOverrides applies flag values, which take priority over everything else.
func (c *Config) MergeOverrides(o Overrides) {
	if o.BrokerURL != "" {
		c.BrokerURL = o.BrokerURL
	}
	if o.DatasetID != "" {
		c.DatasetID = o.DatasetID
	}
	if o.Username != "" {
		c.Username = o.Username
	}
	if o.Password != "" {
		c.Password = o.Password
	}
	if o.DownloadDir != "" {
		c.DownloadDir = o.DownloadDir
	}
	if o.Extension != "" {
		c.Extension = o.Extension
	}
	if o.NameOverride != "" {
		c.NameOverride = o.NameOverride
	}
	if o.PageSize > 0 {
		c.PageSize = o.PageSize
	}
	if o.AllPages {
		c.AllPages = true
	}
	if o.ProxyMode != "" {
		c.ProxyMode = o.ProxyMode
	}
	if o.ProxyHost != "" {
		c.ProxyHost = o.ProxyHost
	}
	if o.ProxyPort > 0 {
		c.ProxyPort = o.ProxyPort
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.PublishTo != "" {
		c.PublishTarget = o.PublishTo
	}
}

// parseProxyURL parses a proxy URL from environment variable
func (c *Config) parseProxyURL(proxyURL string) {
	proxyURL = strings.TrimPrefix(proxyURL, "http://")
	proxyURL = strings.TrimPrefix(proxyURL, "https://")
	proxyURL = strings.TrimSuffix(proxyURL, "/")

	parts := strings.Split(proxyURL, ":")
	if len(parts) >= 1 {
		c.ProxyHost = parts[0]
	}
	if len(parts) >= 2 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			c.ProxyPort = port
		}
	}
	if c.ProxyHost != "" && (c.ProxyMode == "no-proxy" || c.ProxyMode == "") {
		c.ProxyMode = "system"
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
