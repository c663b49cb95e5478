package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateAPIKey encodes "username:password" with standard base64.
// The result is what the broker expects after "Authorization: Basic".
func GenerateAPIKey(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// DecodeAPIKey reverses GenerateAPIKey.
func DecodeAPIKey(key string) (username, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil {
		return "", "", fmt.Errorf("api key is not valid base64: %w", err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", fmt.Errorf("api key does not decode to username:password")
	}
	return user, pass, nil
}

// Key source names reported by ResolveAPIKey
const (
	KeySourceFlag     = "--api-key flag"
	KeySourceEnv      = EnvAPIKey + " environment variable"
	KeySourceUserPass = "username and password"
	KeySourceKeyFile  = "key file"
	KeySourceConfig   = "config file"
	KeySourceNone     = ""
)

// ResolveAPIKey picks the api key from the available sources and stores it on c.
//
// Priority (highest to lowest):
//  1. --api-key flag
//  2. HDA_API_KEY environment variable
//  3. Username and password (flags > env > config file), encoded with GenerateAPIKey
//  4. Explicit --key-file, then the default key file (~/.config/hdaget/apikey)
//  5. api_key in the config file
//
// Returns the winning source and every source that was present, so callers can
// warn when more than one is set.
func (c *Config) ResolveAPIKey(flagKey, keyFile string) (source string, present []string) {
	fileKey := c.APIKey

	var keyFromFile string
	if keyFile != "" {
		if k, err := ReadKeyFile(keyFile); err == nil {
			keyFromFile = k
			present = append(present, KeySourceKeyFile+" ("+keyFile+")")
		}
	} else if defaultPath := DefaultKeyPath(); defaultPath != "" {
		if k, err := ReadKeyFile(defaultPath); err == nil {
			keyFromFile = k
			present = append(present, KeySourceKeyFile+" ("+defaultPath+")")
		}
	}

	envKey := os.Getenv(EnvAPIKey)
	if fileKey != "" {
		present = append(present, KeySourceConfig)
	}
	if c.Username != "" && c.Password != "" {
		present = append(present, KeySourceUserPass)
	}
	if envKey != "" {
		present = append(present, KeySourceEnv)
	}
	if flagKey != "" {
		present = append(present, KeySourceFlag)
	}

	switch {
	case flagKey != "":
		c.APIKey, source = strings.TrimSpace(flagKey), KeySourceFlag
	case envKey != "":
		c.APIKey, source = strings.TrimSpace(envKey), KeySourceEnv
	case c.Username != "" && c.Password != "":
		c.APIKey, source = GenerateAPIKey(c.Username, c.Password), KeySourceUserPass
	case keyFromFile != "":
		c.APIKey, source = keyFromFile, KeySourceKeyFile
	case fileKey != "":
		source = KeySourceConfig
	default:
		source = KeySourceNone
	}
	return source, present
}

// ReadKeyFile reads an api key from a file.
// The file should contain only the key (whitespace is trimmed).
// Warns if file permissions are too open (not 0600 on Unix systems).
func ReadKeyFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat key file: %w", err)
	}

	if mode := info.Mode().Perm(); mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: key file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file is empty")
	}
	return key, nil
}

// WriteKeyFile writes an api key to a file with secure permissions (0600).
func WriteKeyFile(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("cannot write empty key")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
