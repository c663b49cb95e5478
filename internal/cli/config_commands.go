package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hdaget configuration",
		Long: `Configuration management commands for hdaget.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config path or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for hdaget.

The configuration is saved to ~/.config/hdaget/config.ini and the encoded
api key to ~/.config/hdaget/apikey (mode 0600). The password itself is
never written to disk.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("hdaget Configuration Setup")
			fmt.Println("==========================")
			fmt.Println()

			p := newPrompter()
			url, err := p.line("Broker URL", constants.DefaultBrokerURL)
			if err != nil {
				return err
			}
			username, err := p.required("Username")
			if err != nil {
				return err
			}
			password, err := p.password("Password")
			if err != nil {
				return err
			}
			if password == "" {
				return config.ErrMissingCredentials
			}
			dataset, err := p.line("Default dataset id (optional)", "")
			if err != nil {
				return err
			}
			dir, err := p.line("Download directory", ".")
			if err != nil {
				return err
			}

			cfg := config.NewConfig()
			cfg.BrokerURL = url
			cfg.Username = username
			cfg.Password = password
			cfg.DatasetID = dataset
			cfg.DownloadDir = dir

			fmt.Println()
			useProxy, err := p.confirm("Configure proxy?")
			if err != nil {
				return err
			}
			if useProxy {
				fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
				if cfg.ProxyMode, err = p.line("Proxy mode", "system"); err != nil {
					return err
				}
				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					if cfg.ProxyHost, err = p.required("Proxy host"); err != nil {
						return err
					}
					port, err := p.line("Proxy port", "8080")
					if err != nil {
						return err
					}
					fmt.Sscan(port, &cfg.ProxyPort)
					if cfg.ProxyUser, err = p.line("Proxy user (optional)", ""); err != nil {
						return err
					}
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.EnsureConfigDir(); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			keyPath := config.DefaultKeyPath()
			if err := config.WriteKeyFile(keyPath, config.GenerateAPIKey(username, password)); err != nil {
				return fmt.Errorf("failed to save api key: %w", err)
			}
			logger.Info().Str("path", keyPath).Msg("API key saved")

			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Println()
			fmt.Printf("✓ Configuration saved to: %s\n", path)
			fmt.Printf("✓ API key saved to:       %s\n", keyPath)
			fmt.Println()
			fmt.Println("Check your credentials with: hdaget auth token")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/hdaget/config.ini)
  2. .env files and environment variables (HDA_URL, HDA_API_KEY, ...)
  3. Command-line flags (--api-key, --url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			_ = config.LoadEnvFiles("")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeEnv()
			cfg.MergeOverrides(config.Overrides{BrokerURL: brokerURL})
			source, _ := cfg.ResolveAPIKey(apiKey, keyFile)

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()

			fmt.Println("Broker:")
			fmt.Printf("  URL:        %s\n", cfg.BaseURL())
			fmt.Printf("  Dataset:    %s\n", cfg.DatasetID)
			fmt.Printf("  Terms:      %s\n", cfg.TermsID)
			fmt.Printf("  Username:   %s\n", cfg.Username)
			fmt.Printf("  API Key:    %s", maskSecret(cfg.APIKey))
			if source != "" {
				fmt.Printf(" from %s", source)
			}
			fmt.Println()
			fmt.Printf("  Page Size:  %d (all pages: %v)\n", cfg.PageSize, cfg.AllPages)
			fmt.Printf("  Rate Limit: %g req/s\n", cfg.RateLimit)
			fmt.Println()

			fmt.Println("Download:")
			fmt.Printf("  Directory:  %s\n", cfg.DownloadDir)
			if cfg.Extension != "" {
				fmt.Printf("  Extension:  %s\n", cfg.Extension)
			}
			fmt.Printf("  Overwrite:  %v\n", cfg.Overwrite)
			fmt.Println()

			fmt.Println("Polling:")
			fmt.Printf("  Interval:   %s (x%g, max %s)\n", cfg.Poll.Interval, cfg.Poll.Multiplier, cfg.Poll.MaxInterval)
			fmt.Printf("  Timeout:    %s\n", cfg.Poll.Timeout)
			if cfg.Poll.MaxAttempts > 0 {
				fmt.Printf("  Attempts:   %d\n", cfg.Poll.MaxAttempts)
			}
			fmt.Println()

			fmt.Println("Proxy:")
			fmt.Printf("  Mode:       %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Printf("  Host:       %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
			}
			fmt.Println()

			if cfg.MetricsPushURL != "" || cfg.PublishTarget != "" {
				fmt.Println("Outputs:")
				if cfg.MetricsPushURL != "" {
					fmt.Printf("  Metrics:    %s (job %s)\n", cfg.MetricsPushURL, cfg.MetricsJob)
				}
				if cfg.PublishTarget != "" {
					fmt.Printf("  Publish:    %s\n", cfg.PublishTarget)
				}
				fmt.Println()
			}

			fmt.Printf("Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if cfgFile == "" {
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}
			fmt.Printf("  %s\n", path)
			fmt.Println()

			if info, err := os.Stat(path); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", info.Size())
				fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: hdaget config init")
			}
			return nil
		},
	}
}
