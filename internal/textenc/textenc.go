// Package textenc normalizes text sources to UTF-8 before parsing.
package textenc

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Normalize decodes data to UTF-8, honoring and stripping a UTF-8 or UTF-16
// byte order mark. Data without a BOM is treated as UTF-8.
// Returns the original bytes if decoding fails.
func Normalize(data []byte) []byte {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return data
	}
	return result
}

// Lines splits normalized text into lines, accepting LF and CRLF endings.
func Lines(data []byte) []string {
	text := strings.ReplaceAll(string(Normalize(data)), "\r\n", "\n")
	return strings.Split(text, "\n")
}
