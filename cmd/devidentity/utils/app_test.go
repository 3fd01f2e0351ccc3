package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	name, err := ParseName("O=Bank A, L=London, C=GB")
	require.NoError(t, err)
	assert.Equal(t, "Bank A", name.Organisation)

	_, err = ParseName("Bank A")
	assert.ErrorContains(t, err, "invalid --name")
}

func TestAbsPaths(t *testing.T) {
	paths := AbsPaths([]string{"nodes/a", "/srv/nodes/b"})
	require.Len(t, paths, 2)
	assert.True(t, filepath.IsAbs(paths[0]))
	assert.Equal(t, "/srv/nodes/b", paths[1])
}

func TestPromptPasswordOr_NoPrompt(t *testing.T) {
	password, err := PromptPasswordOr(false, "keystore password", "devstorepass")
	require.NoError(t, err)
	assert.Equal(t, "devstorepass", password)
}
