package hpak

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "foo", "foo"},
		{"nested path", "a/b/c.txt", "a/b/c.txt"},
		{"leading slash", "/etc/nginx", "etc/nginx"},
		{"trailing slash", "etc/nginx/", "etc/nginx"},
		{"empty string", "", ""},
		{"root slash", "/", ""},
		{"dot", ".", ""},
		{"only slashes", "///", ""},
		{"internal double slashes", "etc//nginx", "etc/nginx"},
		{"mixed slashes everywhere", "//etc//nginx//", "etc/nginx"},
		{"backslashes", `textures\ui\button.png`, "textures/ui/button.png"},
		{"mixed separators", `a\/b/\c`, "a/b/c"},
		{"dot segments dropped", "./a/./b/.", "a/b"},
		{"case preserved", "Textures/Grass.PNG", "Textures/Grass.PNG"},
		{"dotdot preserved", "a/../b", "a/../b"},
		{"dotted names kept", "a/.hidden/..b", "a/.hidden/..b"},
		{"unicode", "/模型/木.glb", "模型/木.glb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizePath(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePath(got), "normalization must be idempotent")
		})
	}
}

func TestHashPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, xxhash.Sum64String("a/x.txt"), HashPath("a/x.txt"))
	assert.Equal(t, xxhash.Sum64String(""), HashPath(""))
	// Known XXH64 value for the empty input with seed 0.
	assert.Equal(t, uint64(0xef46db3751d8e999), HashPath(""))

	assert.Equal(t, HashPath("a/x.txt"), HashPath(`\a\\x.txt/`))
	assert.Equal(t, HashPath(""), HashPath("/"))
	assert.NotEqual(t, HashPath("a/x.txt"), HashPath("A/x.txt"))
}

func TestValidatePath(t *testing.T) {
	t.Parallel()

	got, err := ValidatePath(`/models\tree.glb`)
	require.NoError(t, err)
	assert.Equal(t, "models/tree.glb", got)

	for _, bad := range []string{"", "/", ".", "../x", "a/../b", `a\..`} {
		_, err := ValidatePath(bad)
		require.ErrorIs(t, err, ErrInvalidPath, "path %q", bad)
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	dir, name := SplitPath("a/b/y.bin")
	assert.Equal(t, "a/b", dir)
	assert.Equal(t, "y.bin", name)

	dir, name = SplitPath("top.txt")
	assert.Empty(t, dir)
	assert.Equal(t, "top.txt", name)

	assert.Equal(t, "a", ParentPath("a/b"))
	assert.Empty(t, ParentPath("a"))
	assert.Empty(t, ParentPath(""))
}

func TestAncestors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a/b", "a", ""}, ancestors("a/b/c"))
	assert.Equal(t, []string{""}, ancestors("x"))
	assert.Empty(t, ancestors(""))
}
