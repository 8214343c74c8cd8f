package drift

import "testing"

func TestMimeFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/docs/readme.txt", "text/plain"},
		{"/docs/README.TXT", "text/plain"},
		{"/img/photo.jpeg", "image/jpeg"},
		{"/data/report.pdf", "application/pdf"},
		{"/misc/archive.unknown", ""},
		{"/noext", ""},
	}
	for _, tt := range tests {
		if got := MimeFromPath(tt.path); got != tt.want {
			t.Errorf("MimeFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestThumbnailEligible(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"image/svg+xml", false},
		{"video/mp4", true},
		{"application/pdf", true},
		{"text/plain", true},
		{"text/html", false},
		{"application/zip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ThumbnailEligible(tt.mime); got != tt.want {
			t.Errorf("ThumbnailEligible(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
