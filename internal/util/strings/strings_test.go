package strings

import "testing"

func TestPluralize(t *testing.T) {
	if Pluralize("file", 1) != "file" || Pluralize("file", 0) != "files" || Pluralize("order", 3) != "orders" {
		t.Error("unexpected pluralization")
	}
	if got := Count(2, "result"); got != "2 results" {
		t.Errorf("Count = %q", got)
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1000, "1000 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
