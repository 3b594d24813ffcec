package layeredfs

import (
	"io/fs"
	"strings"
)

// NormalizePath converts a user-provided path to fs.ValidPath format.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: "scripts\main.lua" → "scripts/main.lua"
//   - Strips leading slashes: "/scripts/main.lua" → "scripts/main.lua"
//   - Strips trailing slashes: "scripts/" → "scripts"
//   - Collapses consecutive slashes: "scripts//main.lua" → "scripts/main.lua"
//   - Converts empty string to root: "" → "."
//
// Paths containing "." or ".." elements are preserved and rejected by the
// layers via fs.ValidPath.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// cleanName normalizes name and reports whether it is a valid layer path.
func cleanName(name string) (string, bool) {
	name = NormalizePath(name)
	return name, fs.ValidPath(name)
}

func invalidName(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
}
