package drift

import (
	"reflect"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{".", "/"},
		{"foo", "/foo"},
		{"/foo", "/foo"},
		{"/foo/", "/foo"},
		{"/foo//bar", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
		{"/foo/../bar", "/bar"},
		{"/../..", "/"},
		{`\foo\bar`, "/foo/bar"},
		{"foo/bar/", "/foo/bar"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePathIdempotent(t *testing.T) {
	for _, p := range []string{"", "/", "foo//bar/..", `a\b`, "/x/y/z/"} {
		once := NormalizePath(p)
		if twice := NormalizePath(once); twice != once {
			t.Errorf("NormalizePath not idempotent for %q: %q then %q", p, once, twice)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/foo", "/"},
		{"/foo/bar", "/foo"},
		{"foo/bar/baz", "/foo/bar"},
	}
	for _, tt := range tests {
		if got := ParentPath(tt.in); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAncestors(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"/", nil},
		{"/a", nil},
		{"/a/b", []string{"/a"}},
		{"/a/b/c", []string{"/a", "/a/b"}},
	}
	for _, tt := range tests {
		if got := Ancestors(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Ancestors(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/alice/Public/readme.txt", true},
		{"/Public", true},
		{"/Public/x", true},
		{"/alice/Private/readme.txt", false},
		{"/alice/public/readme.txt", false}, // case-sensitive
		{"/alice/Publicity/readme.txt", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.in); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDirectChild(t *testing.T) {
	tests := []struct {
		dir, child string
		wantName   string
		wantOK     bool
	}{
		{"/", "/a", "a", true},
		{"/a", "/a/b", "b", true},
		{"/a", "/a/b/c", "", false},
		{"/a", "/a", "", false},
		{"/a", "/ab", "", false},
		{"/", "/", "", false},
	}
	for _, tt := range tests {
		name, ok := DirectChild(tt.dir, tt.child)
		if name != tt.wantName || ok != tt.wantOK {
			t.Errorf("DirectChild(%q, %q) = (%q, %v), want (%q, %v)",
				tt.dir, tt.child, name, ok, tt.wantName, tt.wantOK)
		}
	}
}
