package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFourCC(t *testing.T) {
	tests := []struct {
		codec string
		want  string
	}{
		{"h264", "avc1"},
		{"H264", "avc1"},
		{"mpeg4", "mp4v"},
		{"mjpeg", "MJPG"},
		{"xvid", "XVID"},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			got, err := FourCC(tt.codec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFourCC_Unknown(t *testing.T) {
	_, err := FourCC("vp9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mpeg4")
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, ".mp4", FileExtension("mpeg4"))
	assert.Equal(t, ".avi", FileExtension("MJPEG"))
	assert.Equal(t, ".mp4", FileExtension("unknown"))
}

func TestCodecs_Sorted(t *testing.T) {
	assert.Equal(t, []string{"h264", "mjpeg", "mpeg4", "xvid"}, Codecs())
}
