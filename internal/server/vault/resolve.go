package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDuplicate returns name unchanged if nothing with that name exists
// in dir, and otherwise probes stem_1.ext, stem_2.ext, ... for the first
// free candidate. The result is only guaranteed free at call time; the write
// path re-checks with an exclusive create and re-resolves on collision, so
// concurrent uploads of the same display name still end up under distinct
// stored names.
func ResolveDuplicate(dir, name string) string {
	if !nameTaken(dir, name) {
		return name
	}
	stem, ext := splitName(name)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, counter, ext)
		if !nameTaken(dir, candidate) {
			return candidate
		}
	}
}

func nameTaken(dir, name string) bool {
	_, err := os.Lstat(filepath.Join(dir, name))
	return err == nil
}
