package paths

import (
	"testing"
)

func claimAll(n *Namer, paths ...string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = n.Claim(p)
	}
	return out
}

func TestNamer_NoCollisions(t *testing.T) {
	got := claimAll(NewNamer(), "/dest/a.nc", "/dest/b.nc")
	if got[0] != "/dest/a.nc" || got[1] != "/dest/b.nc" {
		t.Errorf("paths changed: %v", got)
	}
}

func TestNamer_Duplicates(t *testing.T) {
	got := claimAll(NewNamer(), "/dest/S3A_WAT.nc", "/dest/S3A_WAT.nc", "/dest/S3A_WAT.nc")
	want := []string{"/dest/S3A_WAT.nc", "/dest/S3A_WAT_1.nc", "/dest/S3A_WAT_2.nc"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("claim %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNamer_SkipsTakenSuffix(t *testing.T) {
	got := claimAll(NewNamer(), "/dest/a_1.nc", "/dest/a.nc", "/dest/a.nc")
	if got[2] != "/dest/a_2.nc" {
		t.Errorf("expected /dest/a_2.nc, got %s", got[2])
	}
}

func TestNamer_NoExtension(t *testing.T) {
	got := claimAll(NewNamer(), "/dest/README", "/dest/README")
	if got[1] != "/dest/README_1" {
		t.Errorf("expected /dest/README_1, got %s", got[1])
	}
}
