package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		valid    bool
	}{
		{"simple", "S3A_SR_2_WAT.nc", true},
		{"version dots", "product.v1.2.zip", true},
		{"double dot inside", "data..v2.nc", true},
		{"hidden", ".hidden", true},
		{"spaces", "my product.nc", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"unix traversal", "../etc/passwd", false},
		{"windows traversal", `..\windows\system32`, false},
		{"absolute", "/etc/passwd", false},
		{"subdir", "dir/file.nc", false},
		{"null byte", "file\x00.nc", false},
		{"volume", "C:", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if tt.valid && err != nil {
				t.Errorf("ValidateFilename(%q) unexpected error: %v", tt.filename, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateFilename(%q) expected error", tt.filename)
			}
		})
	}
}

func TestValidateExtension(t *testing.T) {
	for _, ok := range []string{"", ".zip", "nc", ".tar.gz"} {
		if err := ValidateExtension(ok); err != nil {
			t.Errorf("ValidateExtension(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{".", "../x", "a b", `.z\ip`} {
		if err := ValidateExtension(bad); err == nil {
			t.Errorf("ValidateExtension(%q) expected error", bad)
		}
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		{"plain file", "a.nc", true},
		{"subdir", filepath.Join("sub", "a.nc"), true},
		{"absolute inside", filepath.Join(base, "a.nc"), true},
		{"dot segments that stay inside", filepath.Join("sub", "..", "a.nc"), true},
		{"escape", filepath.Join("..", "a.nc"), false},
		{"deep escape", filepath.Join("sub", "..", "..", "a.nc"), false},
		{"absolute outside", filepath.Join(filepath.Dir(base), "other.nc"), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tt.path, base)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected error for %q", tt.path)
			}
		})
	}

	if err := ValidatePathInDirectory("a.nc", ""); err == nil {
		t.Error("expected error for empty base directory")
	}
}
