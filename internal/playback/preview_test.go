package playback

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewBuffer_EmptyJPEG(t *testing.T) {
	data, ok, err := NewPreviewBuffer().JPEG(80)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestPreviewBuffer_JPEG(t *testing.T) {
	buf := NewPreviewBuffer()
	buf.Show(imaging.New(16, 12, color.Black))

	data, ok, err := buf.JPEG(80)
	require.NoError(t, err)
	require.True(t, ok)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 12, cfg.Height)
}
