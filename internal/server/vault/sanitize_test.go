package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"spaces kept", "my report.pdf", "my report.pdf"},
		{"traversal", "../../etc/passwd", "passwd"},
		{"absolute path", "/etc/shadow", "shadow"},
		{"nul bytes", "a\x00b.txt", "ab.txt"},
		{"hidden file", ".bashrc", "bashrc"},
		{"many leading dots", "...hidden", "hidden"},
		{"windows drive", `C:\evil\x.txt`, "C_evil_x.txt"},
		{"forbidden chars", `a<b>c:d"e|f?g*h.txt`, "a_b_c_d_e_f_g_h.txt"},
		{"control bytes", "a\x01\x02b.txt", "a_b.txt"},
		{"collapse runs", "a___   b.txt", "a_b.txt"},
		{"surrounding space", "  a.txt  ", "a.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_EmptyFallsBackToRandomName(t *testing.T) {
	for _, in := range []string{"", ".", "..", "....", "///", "   "} {
		got := SanitizeFilename(in)
		assert.Regexp(t, `^unnamed_[0-9a-f]{8}$`, got, "input %q", in)
	}

	// fallback names must not collide
	assert.NotEqual(t, SanitizeFilename(""), SanitizeFilename(""))
}

func TestSanitizeFilename_TruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 300) + ".txt"
	got := SanitizeFilename(long)

	assert.LessOrEqual(t, len([]rune(got)), maxFilenameLength)
	assert.True(t, strings.HasSuffix(got, ".txt"), "extension must survive truncation")
}

func TestSanitizeFilename_NoExtensionTruncation(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("b", 500))
	assert.Len(t, []rune(got), maxFilenameLength)
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	inputs := []string{
		"report.pdf",
		"../../etc/passwd",
		`C:\evil\x.txt`,
		"a<b>c.txt",
		"a___   b.txt",
		"...hidden",
		strings.Repeat("a", 300) + ".txt",
		strings.Repeat("x y ", 100) + ".bin",
		"",
		"   ",
	}

	for _, in := range inputs {
		once := SanitizeFilename(in)
		require.Equal(t, once, SanitizeFilename(once), "not idempotent for %q", in)
	}
}

func TestSanitizeFilename_OutputNeverContainsSeparators(t *testing.T) {
	inputs := []string{
		"../../../etc/passwd",
		`..\..\windows\system32`,
		"/abs/path/file",
		"nested/deep\\mixed/../x",
		"a\x00/b",
	}

	for _, in := range inputs {
		got := SanitizeFilename(in)
		assert.NotContains(t, got, "/", "input %q", in)
		assert.NotContains(t, got, `\`, "input %q", in)
		assert.NotContains(t, got, "\x00", "input %q", in)
	}
}

func TestSplitName(t *testing.T) {
	stem, ext := splitName("archive.tar.gz")
	assert.Equal(t, "archive.tar", stem)
	assert.Equal(t, ".gz", ext)

	stem, ext = splitName("noext")
	assert.Equal(t, "noext", stem)
	assert.Equal(t, "", ext)
}
