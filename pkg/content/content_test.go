package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	// SHA-256 of the empty string is a well-known constant.
	assert.Equal(t,
		"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Hash(""))
	assert.Equal(t, EmptyHash, Hash(""))

	h := Hash("hello")
	require.True(t, strings.HasPrefix(h, HashPrefix))
	assert.Len(t, h, 71)
	assert.Equal(t, h, Hash("hello"), "hash must be deterministic")
	assert.NotEqual(t, h, Hash("hello "))
}

func TestSize(t *testing.T) {
	assert.Equal(t, int64(0), Size(""))
	assert.Equal(t, int64(5), Size("hello"))
	// Size counts UTF-8 bytes, not runes.
	assert.Equal(t, int64(6), Size("héllo"))
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple", "notes/a.md", false},
		{"dotfile", ".gitignore", false},
		{"unicode", "docs/résumé.pdf", false},
		{"spaces", "my notes/todo list.txt", false},
		{"empty", "", true},
		{"angle bracket", "a<b.md", true},
		{"colon", "c:stuff.md", true},
		{"question mark", "what?.md", true},
		{"asterisk", "glob*.md", true},
		{"pipe", "a|b", true},
		{"quote", `say "hi".md`, true},
		{"control char", "a\x01b.md", true},
		{"newline", "a\nb.md", true},
		{"max length", strings.Repeat("a", 1000), false},
		{"too long", strings.Repeat("a", 1001), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent(""))
	assert.NoError(t, ValidateContent(strings.Repeat("x", MaxContentBytes)))
	assert.Error(t, ValidateContent(strings.Repeat("x", MaxContentBytes+1)))
}

func TestExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.md", "md"},
		{"A.MD", "md"},
		{"notes/a.md", "md"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
		{"dir.d/noext", ""},
		{".gitignore", ""},
		{"dir/.gitignore", ""},
		{"trailing.", ""},
		{"deep/path/to/photo.JPEG", "jpeg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Extension(tt.path), "path %q", tt.path)
	}
}

func TestIsBinary(t *testing.T) {
	assert.True(t, IsBinaryPath("photo.png"))
	assert.True(t, IsBinaryPath("photo.PNG"))
	assert.True(t, IsBinaryPath("a/b/c.sqlite3"))
	assert.True(t, IsBinaryExtension("woff2"))
	assert.False(t, IsBinaryPath("notes.md"))
	assert.False(t, IsBinaryPath("main.go"))
	assert.False(t, IsBinaryPath("noext"))
	assert.False(t, IsBinaryExtension(""))
}
