// Package paths provides utilities for local download paths.
package paths

import (
	"fmt"
	"path/filepath"
)

// Namer hands out unique paths one at a time, for callers that learn each
// name only when its download starts. The first claim keeps its path; later
// duplicates get "_<n>" inserted before the extension, counting from 1 and
// skipping any suffixed name that was already claimed.
//
// Example: three results named "S3A_WAT.nc" become
//   - S3A_WAT.nc
//   - S3A_WAT_1.nc
//   - S3A_WAT_2.nc
type Namer struct {
	used map[string]bool
}

// NewNamer creates an empty Namer.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]bool)}
}

// Claim returns path, or path with the next free "_<n>" suffix.
func (n *Namer) Claim(path string) string {
	if !n.used[path] {
		n.used[path] = true
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}
