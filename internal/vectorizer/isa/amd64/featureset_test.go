package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedFeatureSet(t *testing.T) {
	fs := NewFixedFeatureSet(true, false, false)
	require.True(t, fs.HasSSE2())
	require.False(t, fs.HasSSE41())
	require.False(t, fs.HasSSE42())
}

func TestDetectFeatureSet_RunsWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() { DetectFeatureSet() })
}
