package service

import (
	"errors"
	"testing"
)

func TestConstructPath(t *testing.T) {
	cases := []struct {
		name       string
		parentPath string
		filename   string
		want       string
		wantErr    bool
	}{
		{"root file", "", "report.pdf", "report.pdf", false},
		{"nested file", "docs/2026", "report.pdf", "docs/2026/report.pdf", false},
		{"empty filename", "docs", "", "", true},
		{"slash in filename", "docs", "a/b", "", true},
		{"absolute parent", "/docs", "report.pdf", "", true},
		{"empty segment in parent", "docs//2026", "report.pdf", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConstructPath(tc.parentPath, tc.filename)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Fatalf("expected ErrInvalidPath, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestValidPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"", true},
		{"a", true},
		{"a/b/c", true},
		{"a/b/", true},
		{"/a", false},
		{"a//b", false},
	}

	for _, tc := range cases {
		if got := validPath(tc.path); got != tc.want {
			t.Errorf("validPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestValidFilePath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"a.txt", true},
		{"a/b.txt", true},
		{"", false},
		{"a/", false},
		{"/a.txt", false},
		{"a//b.txt", false},
	}

	for _, tc := range cases {
		if got := validFilePath(tc.path); got != tc.want {
			t.Errorf("validFilePath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
