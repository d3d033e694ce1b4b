package filestore

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFilenameBytes = 255

// ErrInvalidName is returned when a filename sanitizes to nothing.
var ErrInvalidName = errors.New("invalid filename")

var (
	illegalFilenameChars = regexp.MustCompile(`[/?<>\\:*|"]`)
	controlFilenameChars = regexp.MustCompile(`[\x00-\x1f\x7f\x{80}-\x{9f}]`)
	dotsOnlyName         = regexp.MustCompile(`^\.+$`)
	windowsReservedName  = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	windowsTrailing      = regexp.MustCompile(`[. ]+$`)
)

// Sanitize reduces a user-supplied filename to a single safe path element.
// Directory components are dropped, then characters that are reserved or
// unprintable on common filesystems are removed. The result never contains a
// path separator and never names "." or "..".
func Sanitize(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = illegalFilenameChars.ReplaceAllString(name, "")
	name = controlFilenameChars.ReplaceAllString(name, "")
	// Truncation runs before the trailing trim so Sanitize is idempotent.
	name = truncateUTF8(name, maxFilenameBytes)
	name = windowsTrailing.ReplaceAllString(name, "")
	if dotsOnlyName.MatchString(name) || windowsReservedName.MatchString(name) {
		name = ""
	}
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// SafeJoin joins root with the sanitized form of name.
func SafeJoin(root, name string) (string, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel != clean {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, name, root)
	}
	return path, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune that
// ends past the cut. Invalid bytes before the cut are kept.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for back := 0; cut > 0 && back < utf8.UTFMax-1 && !utf8.RuneStart(s[cut]); back++ {
		cut--
	}
	return s[:cut]
}
