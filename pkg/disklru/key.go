package disklru

import (
	"fmt"
	"regexp"
)

const keyPatternSource = "[a-z0-9_-]{1,120}"

var keyPattern = regexp.MustCompile("^" + keyPatternSource + "$")

// ValidKey reports whether key can be stored. Keys double as file name
// prefixes, so only [a-z0-9_-] is allowed, 1 to 120 characters.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

func validateKey(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: keys must match regex %s: %q", ErrInvalidInput, keyPatternSource, key)
	}

	return nil
}
