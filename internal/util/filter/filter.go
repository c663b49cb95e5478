// Package filter narrows a result list by filename before orders are placed.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/eodata/hdaget/internal/models"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*_WAT*", "*.nc"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	Exclude []string

	// Search terms (case-insensitive substring match).
	// A result must match ALL search terms to be kept.
	Search []string
}

// Empty reports whether the config filters nothing.
func (c Config) Empty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0
}

// ApplyToResults keeps the results whose filename passes the filter, in their original order.
func ApplyToResults(results []models.Result, config Config) []models.Result {
	if config.Empty() {
		return results
	}

	filtered := make([]models.Result, 0, len(results))
	for _, r := range results {
		if Matches(r.Filename, config) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Matches checks a single filename against the configuration.
func Matches(filename string, config Config) bool {
	base := filepath.Base(filename)

	for _, pattern := range config.Exclude {
		if globMatch(pattern, filename) || globMatch(pattern, base) {
			return false
		}
	}

	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if globMatch(pattern, filename) || globMatch(pattern, base) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	lower := strings.ToLower(filename)
	for _, term := range config.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}

	return true
}

func globMatch(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.nc,*.zip" -> []string{"*.nc", "*.zip"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
