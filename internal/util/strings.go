package util

import "strings"

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ShortID truncates a commit id to its first eight characters.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// BaseName returns the part of a repository identifier after the last slash.
func BaseName(fullName string) string {
	return fullName[strings.LastIndex(fullName, "/")+1:]
}

func AsPtr[T any](v T) *T {
	return &v
}
