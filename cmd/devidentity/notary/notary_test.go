package notary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/devidentity/pkg/compositekey"
)

func TestResolveThreshold_Explicit(t *testing.T) {
	value, err := resolveThreshold(true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, value)

	for _, bad := range []int{0, -1} {
		_, err := resolveThreshold(true, bad)
		assert.ErrorIs(t, err, compositekey.ErrInvalidThreshold, "threshold %d", bad)
	}
}
