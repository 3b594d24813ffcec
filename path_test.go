package layeredfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading slash", "/scripts/main.lua", "scripts/main.lua"},
		{"trailing slash", "scripts/", "scripts"},
		{"empty string", "", "."},
		{"root slash", "/", "."},
		{"dot", ".", "."},
		{"simple", "a.txt", "a.txt"},
		{"only slashes", "///", "."},
		{"internal double slashes", "materials//models///x.vmt", "materials/models/x.vmt"},
		{"backslashes", `materials\models\x.vmt`, "materials/models/x.vmt"},
		{"mixed separators", `\materials/\x.vmt`, "materials/x.vmt"},
		// Dot and dotdot segments are preserved (for fs.ValidPath to reject)
		{"dotdot in middle", "a/../b", "a/../b"},
		{"dotdot at start", "../etc", "../etc"},
		{"dot in middle", "a/./b", "a/./b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePath(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanName(t *testing.T) {
	for _, bad := range []string{"..", "../secret", "a/../../b", "a/./b"} {
		_, ok := cleanName(bad)
		assert.False(t, ok, bad)
	}
	name, ok := cleanName("//a//b.txt")
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", name)
}
