package video

import (
	"fmt"
	"sort"
	"strings"
)

type codecInfo struct {
	fourCC    string
	extension string
}

// codecs maps configuration names to the FourCC handed to the writer and the
// container that carries it.
var codecs = map[string]codecInfo{
	"h264":  {fourCC: "avc1", extension: ".mp4"},
	"mpeg4": {fourCC: "mp4v", extension: ".mp4"},
	"mjpeg": {fourCC: "MJPG", extension: ".avi"},
	"xvid":  {fourCC: "XVID", extension: ".avi"},
}

// FourCC returns the writer code for a codec name such as "mpeg4".
func FourCC(codec string) (string, error) {
	info, ok := codecs[strings.ToLower(codec)]
	if !ok {
		return "", fmt.Errorf("unknown codec %q (supported: %s)", codec, strings.Join(Codecs(), ", "))
	}
	return info.fourCC, nil
}

// FileExtension returns the preferred container extension for a codec, or
// ".mp4" when the codec is unknown.
func FileExtension(codec string) string {
	if info, ok := codecs[strings.ToLower(codec)]; ok {
		return info.extension
	}
	return ".mp4"
}

// Codecs lists the supported codec names in sorted order.
func Codecs() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
