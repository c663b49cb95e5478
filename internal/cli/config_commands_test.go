package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/core"
	"github.com/eodata/hdaget/internal/download"
	"github.com/eodata/hdaget/internal/models"
)

// TestConfigPath tests the config path command
func TestConfigPath(t *testing.T) {
	cmd := newConfigPathCmd()
	if cmd == nil {
		t.Fatal("newConfigPathCmd() returned nil")
	}

	if cmd.Use != "path" {
		t.Errorf("Expected Use='path', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description is empty")
	}
}

// TestConfigShow tests the config show command
func TestConfigShow(t *testing.T) {
	cmd := newConfigShowCmd()
	if cmd == nil {
		t.Fatal("newConfigShowCmd() returned nil")
	}

	if cmd.Use != "show" {
		t.Errorf("Expected Use='show', got '%s'", cmd.Use)
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()
	if cmd == nil {
		t.Fatal("newConfigInitCmd() returned nil")
	}

	if cmd.Use != "init" {
		t.Errorf("Expected Use='init', got '%s'", cmd.Use)
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}

	if cmd.Flags().Lookup("force") == nil {
		t.Error("--force flag not found")
	}
}

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}
	assertSubcommands(t, cmd, "init", "show", "path")
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)
	assertSubcommands(t, root, "completion", "config", "auth", "metadata", "search", "fetch", "order", "waveform", "version")

	for _, name := range []string{"config", "api-key", "key-file", "url", "log-file", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not found", name)
		}
	}
}

func TestPipelineCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		flags []string
	}{
		{newSearchCmd(), []string{"dataset", "username", "page-size", "all-pages", "include", "exclude", "search"}},
		{newFetchCmd(), []string{"dataset", "output", "ext", "name", "publish-to", "continue-on-error", "overwrite"}},
		{newOrderCmd(), []string{"dataset", "output", "continue-on-error"}},
		{newWaveformStatsCmd(), []string{"var", "lo", "hi", "records"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			for _, name := range tt.flags {
				if tt.cmd.Flags().Lookup(name) == nil {
					t.Errorf("--%s flag not found", name)
				}
			}
			if err := tt.cmd.Args(tt.cmd, nil); err == nil {
				t.Error("expected an argument error with no arguments")
			}
		})
	}
}

func assertSubcommands(t *testing.T, cmd *cobra.Command, want ...string) {
	t.Helper()
	found := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
	}
	if len(found) != len(want) {
		t.Errorf("Expected %d subcommands, got %d", len(want), len(found))
	}
	for _, name := range want {
		if !found[name] {
			t.Errorf("Subcommand '%s' not found", name)
		}
	}
}

// isolateConfig points every config source at an empty temp directory and
// restores the global flags afterwards.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("APPDATA", dir)
	for _, name := range []string{config.EnvBrokerURL, config.EnvDatasetID, config.EnvUsername,
		config.EnvPassword, config.EnvAPIKey, config.EnvDownloadDir, config.EnvProfile, "HTTPS_PROXY"} {
		t.Setenv(name, "")
	}

	saved := []string{cfgFile, apiKey, keyFile, brokerURL}
	t.Cleanup(func() {
		cfgFile, apiKey, keyFile, brokerURL = saved[0], saved[1], saved[2], saved[3]
	})
	cfgFile = filepath.Join(dir, "config.ini")
	apiKey, keyFile, brokerURL = "", "", ""
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv(config.EnvAPIKey, "ZW52OmtleQ==")
		t.Setenv(config.EnvBrokerURL, "broker.example.com/databroker/")

		cfg, err := loadConfig(config.Overrides{DatasetID: "EO:TEST"})
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.APIKey != "ZW52OmtleQ==" {
			t.Errorf("APIKey = %q", cfg.APIKey)
		}
		if got := cfg.BaseURL(); got != "https://broker.example.com/databroker" {
			t.Errorf("BaseURL() = %q", got)
		}
		if cfg.DatasetID != "EO:TEST" {
			t.Errorf("DatasetID = %q", cfg.DatasetID)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv(config.EnvAPIKey, "ZW52OmtleQ==")
		t.Setenv(config.EnvBrokerURL, "https://env.example.com")
		apiKey = "ZmxhZzprZXk="
		brokerURL = "https://flag.example.com"

		cfg, err := loadConfig(config.Overrides{})
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.APIKey != "ZmxhZzprZXk=" {
			t.Errorf("APIKey = %q, want the flag value", cfg.APIKey)
		}
		if cfg.BaseURL() != "https://flag.example.com" {
			t.Errorf("BaseURL() = %q, want the flag value", cfg.BaseURL())
		}
	})

	t.Run("key file", func(t *testing.T) {
		dir := isolateConfig(t)
		keyFile = filepath.Join(dir, "apikey")
		if err := config.WriteKeyFile(keyFile, config.GenerateAPIKey("alice", "s3cret")); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(config.Overrides{})
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.APIKey != config.GenerateAPIKey("alice", "s3cret") {
			t.Errorf("APIKey = %q", cfg.APIKey)
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		isolateConfig(t)
		_, err := loadConfig(config.Overrides{})
		if !errors.Is(err, config.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestQueryConfigDatasetFromQuery(t *testing.T) {
	dir := isolateConfig(t)
	apiKey = "a2V5"

	query := filepath.Join(dir, "query.yaml")
	writeFile(t, query, "datasetId: EO:EUM:DAT:SENTINEL-3:SR_2_WAT___\nboundingBoxValues:\n  - name: bbox\n    bbox: [1, 40, 2, 41]\n")

	cfg, raw, err := queryConfig(query, config.Overrides{})
	if err != nil {
		t.Fatalf("queryConfig: %v", err)
	}
	if cfg.DatasetID != "EO:EUM:DAT:SENTINEL-3:SR_2_WAT___" {
		t.Errorf("DatasetID = %q", cfg.DatasetID)
	}
	if !strings.Contains(string(raw), `"datasetId"`) {
		t.Errorf("query not converted to JSON: %s", raw)
	}

	cfg, _, err = queryConfig(query, config.Overrides{DatasetID: "EO:OTHER"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatasetID != "EO:OTHER" {
		t.Errorf("--dataset should win over the query, got %q", cfg.DatasetID)
	}
}

func TestRunFlagsFilter(t *testing.T) {
	f := runFlags{include: "*.nc, *.zip", exclude: "*_tmp*", search: "SR_2"}
	got := f.filter()
	if len(got.Include) != 2 || got.Include[0] != "*.nc" || got.Include[1] != "*.zip" {
		t.Errorf("Include = %v", got.Include)
	}
	if len(got.Exclude) != 1 || got.Exclude[0] != "*_tmp*" {
		t.Errorf("Exclude = %v", got.Exclude)
	}
	if len(got.Search) != 1 || got.Search[0] != "SR_2" {
		t.Errorf("Search = %v", got.Search)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "<not set>" {
		t.Errorf("maskSecret(\"\") = %q", got)
	}
	if got := maskSecret("abcdef"); got != "<set (6 chars)>" || strings.Contains(got, "abc") {
		t.Errorf("maskSecret leaked or mislabelled: %q", got)
	}
}

func TestPrintReport(t *testing.T) {
	r := &core.Report{
		JobID: "job-1",
		Results: []models.Result{
			{Filename: "a.nc", Size: 10},
			{Filename: "b.nc", Size: 20},
		},
		Orders: []core.OrderOutcome{
			{Index: 0, Result: models.Result{Filename: "a.nc"}, OrderID: "o-1", Status: models.StatusCompleted},
			{Index: 1, Result: models.Result{Filename: "b.nc"}, Err: errors.New("order rejected")},
		},
		Downloads: []download.Outcome{{Index: 0, OrderID: "o-1", Path: "a.nc", Written: 2048}},
		Durations: map[string]time.Duration{core.StepToken: time.Millisecond},
		Elapsed:   time.Second,
	}

	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()
	for _, want := range []string{"job-1", "1 ok, 1 failed", "2.0 KiB", "order b.nc: order rejected", "token:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, []models.Result{{
		Filename:    "S3A_SR_2_WAT.zip",
		Size:        1536,
		ProductInfo: models.ProductInfo{ProductStartDate: "2024-03-01T10:00:00Z"},
	}})
	out := buf.String()
	for _, want := range []string{"FILENAME", "S3A_SR_2_WAT.zip", "1.5 KiB", "2024-03-01 10:00:00", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
