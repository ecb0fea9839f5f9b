package utils

import (
	"path"
	"strings"
	"unicode"
)

// CleanFilename reduces a client-supplied upload name to its base name.
// Browsers on Windows may send full paths with backslashes.
func CleanFilename(filename string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)
	clean = strings.ReplaceAll(clean, `\`, "/")
	clean = strings.TrimSpace(path.Base(strings.TrimSpace(clean)))

	if clean == "." || clean == "/" || clean == ".." {
		return ""
	}
	return clean
}

// Sanitize returns def when text is blank, text trimmed otherwise.
func Sanitize(text, def string) string {
	if text = strings.TrimSpace(text); text == "" {
		return def
	}
	return text
}
