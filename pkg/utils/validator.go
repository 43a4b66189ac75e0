package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeString removes control characters that cannot appear in an XML
// document. Tabs and line breaks are kept.
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || r == 0x7f || r == 0xfffe || r == 0xffff:
			return -1
		}
		return r
	}, s)
}

// JoinWithin joins name onto dir and rejects names that would resolve
// outside dir, such as absolute paths or ".." segments.
func JoinWithin(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("file name is empty")
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("file name must be relative: %s", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file name escapes %s: %s", dir, name)
	}
	return filepath.Join(dir, clean), nil
}
