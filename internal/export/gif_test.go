package export

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/maauso/framecut/internal/video"
	"github.com/maauso/framecut/internal/video/videotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnimation struct {
	path     string
	duration time.Duration
	frames   []image.Image
	closed   bool
	closeErr error
}

func (r *recordingAnimation) Append(img image.Image) error {
	r.frames = append(r.frames, img)
	return nil
}

func (r *recordingAnimation) Close() error {
	r.closed = true
	return r.closeErr
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func saveStill(t *testing.T, path string, gray uint8) {
	t.Helper()
	saveSizedStill(t, path, 8, 6, gray)
}

func saveSizedStill(t *testing.T, path string, width, height int, gray uint8) {
	t.Helper()
	require.NoError(t, imaging.Save(imaging.New(width, height, color.Gray{Y: gray}), path))
}

func TestAssembleGIF_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "notes.txt")
	output := filepath.Join(t.TempDir(), "out.gif")

	res, err := NewExporter(videotest.NewBackend()).AssembleGIF(context.Background(), GIFRequest{
		SourceDir:  dir,
		OutputPath: output,
	})

	require.ErrorIs(t, err, ErrNoFrames)
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, StatusFailed, res.Status())
	assert.NoFileExists(t, output)
}

func TestAssembleGIF_MissingDirectory(t *testing.T) {
	_, err := NewExporter(videotest.NewBackend()).AssembleGIF(context.Background(), GIFRequest{
		SourceDir:  filepath.Join(t.TempDir(), "nope"),
		OutputPath: filepath.Join(t.TempDir(), "out.gif"),
	})

	assert.ErrorIs(t, err, ErrNoInput)
}

func TestAssembleGIF_SortsByFilename(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "frame_00010.jpg", "frame_00002.jpg", "frame_00001.jpg", "cover.png")

	var read []string
	anim := &recordingAnimation{}
	exporter := NewExporter(videotest.NewBackend(),
		WithStillReader(func(path string) (image.Image, error) {
			read = append(read, filepath.Base(path))
			return imaging.New(2, 2, color.White), nil
		}),
		WithAnimationOpener(func(path string, d time.Duration) (AnimationWriter, error) {
			anim.path, anim.duration = path, d
			return anim, nil
		}),
	)

	res, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: "out.gif"})

	require.NoError(t, err)
	assert.Equal(t, []string{"frame_00001.jpg", "frame_00002.jpg", "frame_00010.jpg"}, read)
	assert.Len(t, anim.frames, 3)
	assert.True(t, anim.closed)
	assert.Equal(t, DefaultFrameDuration, anim.duration)
	assert.Equal(t, "completed fully", res.String())
}

func TestAssembleGIF_ConfiguredExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.PNG", "c.gif")

	var read []string
	exporter := NewExporter(videotest.NewBackend(),
		WithGIFExtensions("png", ".JPG"),
		WithStillReader(func(path string) (image.Image, error) {
			read = append(read, filepath.Base(path))
			return imaging.New(2, 2, color.White), nil
		}),
		WithAnimationOpener(func(string, time.Duration) (AnimationWriter, error) {
			return &recordingAnimation{}, nil
		}),
	)

	_, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: "out.gif"})

	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.PNG"}, read)
}

func TestAssembleGIF_UnreadableStillIsPartial(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.jpg", "2.jpg", "3.jpg")
	anim := &recordingAnimation{}
	exporter := NewExporter(videotest.NewBackend(),
		WithStillReader(func(path string) (image.Image, error) {
			if filepath.Base(path) == "2.jpg" {
				return nil, video.ErrRead
			}
			return imaging.New(2, 2, color.White), nil
		}),
		WithAnimationOpener(func(string, time.Duration) (AnimationWriter, error) { return anim, nil }),
	)

	res, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: "out.gif"})

	require.NoError(t, err)
	assert.Equal(t, "completed partially (1 of 3 frames)", res.String())
	assert.True(t, anim.closed)
}

func TestAssembleGIF_OpenFailure(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.jpg")
	exporter := NewExporter(videotest.NewBackend(),
		WithAnimationOpener(func(string, time.Duration) (AnimationWriter, error) {
			return nil, errors.New("disk full")
		}),
	)

	res, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: "out.gif"})

	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status())
}

func TestAssembleGIF_EncodesRealStills(t *testing.T) {
	dir := t.TempDir()
	for i, gray := range []uint8{0, 128, 255} {
		saveStill(t, filepath.Join(dir, filepath.Base(NewExporter(nil).FrameFileName(i))), gray)
	}
	output := filepath.Join(t.TempDir(), "out.gif")

	res, err := NewExporter(videotest.NewBackend()).AssembleGIF(context.Background(), GIFRequest{
		SourceDir:     dir,
		OutputPath:    output,
		FrameDuration: 250 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 3)
	assert.Equal(t, []int{25, 25, 25}, anim.Delay)
	assert.Equal(t, 8, anim.Image[0].Bounds().Dx())
}

func TestAssembleGIF_MixedSizeStillsScaleToFirst(t *testing.T) {
	dir := t.TempDir()
	saveSizedStill(t, filepath.Join(dir, "1.png"), 8, 6, 0)
	saveSizedStill(t, filepath.Join(dir, "2.png"), 16, 12, 128)
	saveSizedStill(t, filepath.Join(dir, "3.png"), 4, 10, 255)
	output := filepath.Join(t.TempDir(), "out.gif")

	res, err := NewExporter(videotest.NewBackend()).AssembleGIF(context.Background(), GIFRequest{
		SourceDir:  dir,
		OutputPath: output,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status())
	assert.Equal(t, "completed fully", res.String())

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, anim.Image, 3)
	for _, frame := range anim.Image {
		assert.Equal(t, image.Rect(0, 0, 8, 6), frame.Bounds())
	}
}

func TestAssembleGIF_CloseFailureIsPartial(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.jpg", "2.jpg")
	anim := &recordingAnimation{closeErr: video.ErrWrite}
	exporter := NewExporter(videotest.NewBackend(),
		WithStillReader(func(string) (image.Image, error) { return imaging.New(2, 2, color.White), nil }),
		WithAnimationOpener(func(string, time.Duration) (AnimationWriter, error) { return anim, nil }),
	)

	res, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: "out.gif"})

	require.ErrorIs(t, err, video.ErrWrite)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, StatusPartial, res.Status())
	assert.NotEqual(t, "completed fully", res.String())
	assert.True(t, anim.closed)
}

func TestAssembleGIF_FirstStillUnreadableLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.jpg", "2.jpg")
	output := filepath.Join(t.TempDir(), "out.gif")

	res, err := NewExporter(videotest.NewBackend()).AssembleGIF(context.Background(), GIFRequest{
		SourceDir:  dir,
		OutputPath: output,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, "completed partially (0 of 2 frames)", res.String())
	assert.NoFileExists(t, output)
}

func TestExportImagesThenAssembleGIF(t *testing.T) {
	backend := videotest.NewBackend()
	backend.AddFile("clip.mp4", 30, 30, 8, 6)
	backend.SaveImages = true
	dir := t.TempDir()
	output := filepath.Join(t.TempDir(), "clip.gif")
	exporter := NewExporter(backend)

	_, err := exporter.ExportImages(context.Background(), ImageRequest{
		SourcePath: "clip.mp4",
		Segment:    seg(30, 3, 7),
		Dir:        dir,
	})
	require.NoError(t, err)

	res, err := exporter.AssembleGIF(context.Background(), GIFRequest{SourceDir: dir, OutputPath: output})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Written)
	assert.FileExists(t, output)
}
