package vault

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scs-backend/scs/internal/common"
)

// maxFilenameLength bounds sanitized names so they stay well under common
// filesystem limits even with the sidecar suffix appended.
const maxFilenameLength = 200

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRuns = regexp.MustCompile(`[_ ]{2,}`)
)

// SanitizeFilename turns an untrusted display name into a name that is safe
// to join to a namespace directory. It is total (always returns a usable
// name) and idempotent, and its output never contains a path separator or a
// NUL byte.
//
// Steps, in order: drop NUL bytes, keep only the basename, strip leading
// dots, replace forbidden characters with underscores, collapse runs of
// underscores and spaces, trim surrounding whitespace, fall back to a random
// unnamed_<hex> name if nothing is left, and truncate over-long names while
// preserving the extension.
func SanitizeFilename(raw string) string {
	name := strings.ReplaceAll(raw, "\x00", "")
	// basename only: everything up to the last separator is discarded,
	// which defeats ../ and absolute-path input
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(name, ".")
	name = forbiddenChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)

	if name == "" {
		// crypto/rand keeps independent fallback names from colliding
		suffix, err := common.MakeRandHexString(4)
		if err != nil {
			suffix = strings.Repeat("0", 8)
		}
		name = "unnamed_" + suffix
	}

	if runes := []rune(name); len(runes) > maxFilenameLength {
		ext := filepath.Ext(name)
		if extRunes := []rune(ext); len(extRunes) < maxFilenameLength {
			stem := []rune(strings.TrimSuffix(name, ext))
			name = string(stem[:maxFilenameLength-len(extRunes)]) + ext
		} else {
			name = string(runes[:maxFilenameLength])
		}
		name = strings.TrimSpace(name)
	}

	return name
}

// splitName splits a sanitized filename into stem and extension, the
// extension keeping its leading dot.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
