package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Sentinel-3 water", "Sentinel-3 water"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"spaces and tabs", "a  \t b", "a b"},
		{"blank lines", "a\n\n\nb", "a\nb"},
		{"invisible", "S3A\u200B_WAT", "S3A_WAT"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestField(t *testing.T) {
	if got := Field("  EO:ESA:DAT\uFEFF  "); got != "EO:ESA:DAT" {
		t.Errorf("Field() = %q", got)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"S3A_SR_2_WAT.nc", "S3A_SR_2_WAT.nc"},
		{" product\u200B.zip\n", "product.zip"},
		{"a\x00b\x07.nc", "ab.nc"},
		{"my file.nc", "my file.nc"},
	}
	for _, tt := range tests {
		if got := Filename(tt.input); got != tt.expected {
			t.Errorf("Filename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRemoveInvisibleChars(t *testing.T) {
	input := "\u200B\u200C\u200D\uFEFF\u00ADtest\u2060\u180E"
	if got := removeInvisibleChars(input); got != "test" {
		t.Errorf("removeInvisibleChars() = %q, want %q", got, "test")
	}
}
