package wlpath

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantErr  bool
		owner    string
		hint     string
		parts    []string
		filePath string
	}{
		{
			name:  "bare container path",
			input: ":/videos/cats:",
			parts: []string{"/videos/cats"},
		},
		{
			name:     "owner and file path",
			input:    "0xaabbcc:/videos/cats:/cat.mp4",
			owner:    "0xaabbcc",
			parts:    []string{"/videos/cats"},
			filePath: "/cat.mp4",
		},
		{
			name:  "alias owner",
			input: "@default:/videos:",
			owner: "@default",
			parts: []string{"/videos"},
		},
		{
			name:  "owner with hint",
			input: "0xaabbcc@https://example.com/user.yaml:/videos:",
			owner: "0xaabbcc",
			hint:  "https://example.com/user.yaml",
			parts: []string{"/videos"},
		},
		{
			name:  "multiple container parts",
			input: ":/a:/b:/file.txt",
			parts: []string{"/a", "/b"},
			filePath: "/file.txt",
		},
		{
			name:    "missing colon",
			input:   "/videos/cats",
			wantErr: true,
		},
		{
			name:    "no container parts",
			input:   ":",
			wantErr: true,
		},
		{
			name:    "malformed owner",
			input:   "not-a-fingerprint:/videos:",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q): expected error, got none", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %v", tc.input, err)
			}
			if p.Owner != tc.owner {
				t.Errorf("Owner = %q, want %q", p.Owner, tc.owner)
			}
			if p.Hint != tc.hint {
				t.Errorf("Hint = %q, want %q", p.Hint, tc.hint)
			}
			if len(p.Parts) != len(tc.parts) {
				t.Fatalf("Parts = %v, want %v", p.Parts, tc.parts)
			}
			for i := range p.Parts {
				if p.Parts[i] != tc.parts[i] {
					t.Errorf("Parts[%d] = %q, want %q", i, p.Parts[i], tc.parts[i])
				}
			}
			if p.FilePath != tc.filePath {
				t.Errorf("FilePath = %q, want %q", p.FilePath, tc.filePath)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	if !Match(":/videos:") {
		t.Error("expected :/videos: to match")
	}
	if Match("/just/a/path") {
		t.Error("expected a plain absolute path not to match")
	}
}

func TestStringRoundTrip(t *testing.T) {
	const input = "0xaabbcc@https://example.com/user.yaml:/videos:/cat.mp4"
	p, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.String(); got != input {
		t.Errorf("String() = %q, want %q", got, input)
	}
}
