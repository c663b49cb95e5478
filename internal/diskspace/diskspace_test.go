package diskspace

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckAvailableSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "product.nc")

	t.Run("small file", func(t *testing.T) {
		if err := CheckAvailableSpace(target, 1024, 0.10); err != nil {
			t.Errorf("expected no error for small file, got: %v", err)
		}
	})

	t.Run("unknown size", func(t *testing.T) {
		if err := CheckAvailableSpace(target, 0, 0.10); err != nil {
			t.Errorf("unknown size must pass, got: %v", err)
		}
	})

	t.Run("larger than the disk", func(t *testing.T) {
		available, err := availableBytes(filepath.Dir(target))
		if err != nil || available == 0 {
			t.Skip("could not determine available space")
		}
		err = CheckAvailableSpace(target, available, 0.10)
		if !IsInsufficientSpaceError(err) {
			t.Fatalf("expected InsufficientSpaceError, got %v", err)
		}
		ise := err.(*InsufficientSpaceError)
		if ise.RequiredBytes <= available {
			t.Errorf("buffer not applied: required %d, available %d", ise.RequiredBytes, available)
		}
	})

	t.Run("missing directory passes", func(t *testing.T) {
		if err := CheckAvailableSpace("/definitely/not/here/x.nc", 1<<50, 0.10); err != nil {
			t.Errorf("unstatable directory should not block, got %v", err)
		}
	})
}

func TestAvailableBytes(t *testing.T) {
	if n, err := availableBytes(t.TempDir()); err != nil || n == 0 {
		t.Errorf("expected non-zero available space for a temp dir, got %d, %v", n, err)
	}
}

func TestIsInsufficientSpaceError(t *testing.T) {
	err := &InsufficientSpaceError{Path: "/tmp/test.nc", RequiredBytes: 1000, AvailableBytes: 500}

	if !IsInsufficientSpaceError(err) {
		t.Error("expected true for InsufficientSpaceError")
	}
	if !IsInsufficientSpaceError(fmt.Errorf("download: %w", err)) {
		t.Error("expected true for wrapped InsufficientSpaceError")
	}
	if IsInsufficientSpaceError(fmt.Errorf("some other error")) || IsInsufficientSpaceError(nil) {
		t.Error("expected false for other errors")
	}
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	err := &InsufficientSpaceError{
		Path:           "/tmp/test.nc",
		RequiredBytes:  1024 * 1024 * 100,
		AvailableBytes: 1024 * 1024 * 50,
	}

	msg := err.Error()
	for _, want := range []string{"/tmp/test.nc", "100.00", "50.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
