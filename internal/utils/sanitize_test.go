package utils

import "testing"

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced name.txt ", "spaced name.txt"},
		{`C:\Users\me\photo.jpg`, "photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{"dir/", "dir"},
		{"..", ""},
		{"", ""},
		{"bad\x00name.txt", "badname.txt"},
	}

	for _, tt := range tests {
		if got := CleanFilename(tt.in); got != tt.want {
			t.Errorf("CleanFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("   ", "fallback"); got != "fallback" {
		t.Errorf("Sanitize(blank) = %q", got)
	}
	if got := Sanitize(" x ", "fallback"); got != "x" {
		t.Errorf("Sanitize(x) = %q", got)
	}
}
