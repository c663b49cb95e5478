// Package validation checks names and paths that come from the broker or the command line.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename rejects names that could escape the download directory.
// Use it on every filename taken from a result descriptor or a
// Content-Disposition header before joining it to a directory.
//
// Returns an error if the filename:
//   - Is empty, "." or ".."
//   - Contains path separators (/ or \)
//   - Contains null bytes
//   - Is a Windows volume name such as "C:"
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// Only the literal names; "data..v2.nc" is fine
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	if len(filename) == 2 && filename[1] == ':' {
		return fmt.Errorf("filename cannot be a volume name: %s", filename)
	}
	return nil
}

// ValidateExtension checks a user-supplied extension such as ".zip" or "nc".
func ValidateExtension(ext string) error {
	if ext == "" {
		return nil
	}
	trimmed := strings.TrimPrefix(ext, ".")
	if trimmed == "" {
		return fmt.Errorf("extension cannot be just a dot")
	}
	if strings.ContainsAny(trimmed, `/\ `) || strings.ContainsRune(trimmed, 0) {
		return fmt.Errorf("invalid extension: %q", ext)
	}
	return nil
}

// ValidatePathInDirectory validates that a path, when resolved, stays within baseDir.
//
// Both path and baseDir are cleaned and made absolute before comparison.
//
// Example:
//
//	ValidatePathInDirectory("../../etc/passwd", "/data/downloads") // Error: escapes base dir
//	ValidatePathInDirectory("S3A_WAT.nc", "/data/downloads")        // OK
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
