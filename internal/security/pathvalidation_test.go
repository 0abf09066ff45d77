package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"plain file", filepath.Join(dir, "mapping_rig1.png"), false},
		{"nested new file", filepath.Join(dir, "reports", "a.png"), false},
		{"dot dot escape", filepath.Join(dir, "..", "a.png"), true},
		{"other directory", filepath.Join(outside, "a.png"), true},
		{"directory itself", dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "out")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := ValidatePathWithinDirectory(filepath.Join(link, "new.png"), dir); err == nil {
		t.Error("expected symlinked parent pointing outside to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"cube-1":        "cube-1",
		"rig one":       "rig_one",
		"../../etc":     "etc",
		"a//b\\c":       "a_b_c",
		"":              "unknown",
		"...":           "unknown",
		"rig_1.v2":      "rig_1.v2",
		"Ärger im Büro": "rger_im_B_ro",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
