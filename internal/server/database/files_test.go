package database

import "testing"

func TestSplitCopyName(t *testing.T) {
	cases := []struct {
		path   string
		stem   string
		suffix string
	}{
		{"report.pdf", "report", ".pdf"},
		{"docs/report.pdf", "docs/report", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{"docs/README", "docs/README", ""},
		{".env", "", ".env"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			stem, suffix := splitCopyName(tc.path)
			if stem != tc.stem || suffix != tc.suffix {
				t.Errorf("splitCopyName(%q) = (%q, %q), want (%q, %q)",
					tc.path, stem, suffix, tc.stem, tc.suffix)
			}
		})
	}
}

func TestParentDir(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"report.pdf", ""},
		{"docs/report.pdf", "docs/"},
		{"a/b/c.txt", "a/b/"},
		{"docs/", ""},
		{"a/b/", "a/"},
	}

	for _, tc := range cases {
		if got := parentDir(tc.path); got != tc.want {
			t.Errorf("parentDir(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLikeEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain/path.txt", "plain/path.txt"},
		{"100%.txt", `100\%.txt`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
		{`all_%\of-them`, `all\_\%\\of-them`},
	}

	for _, tc := range cases {
		if got := likeEscape(tc.in); got != tc.want {
			t.Errorf("likeEscape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccessTypeCovers(t *testing.T) {
	cases := []struct {
		grant    AccessType
		required AccessType
		want     bool
	}{
		{AccessAdmin, AccessRead, true},
		{AccessAdmin, AccessWrite, true},
		{AccessAdmin, AccessAdmin, true},
		{AccessWrite, AccessRead, true},
		{AccessWrite, AccessWrite, true},
		{AccessWrite, AccessAdmin, false},
		{AccessRead, AccessRead, true},
		{AccessRead, AccessWrite, false},
		{AccessRead, AccessAdmin, false},
		{AccessType(""), AccessRead, false},
	}

	for _, tc := range cases {
		if got := tc.grant.Covers(tc.required); got != tc.want {
			t.Errorf("%q.Covers(%q) = %v, want %v", tc.grant, tc.required, got, tc.want)
		}
	}
}
