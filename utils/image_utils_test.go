package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGenerateImageName(t *testing.T) {
	name := GenerateImageName(".jpg")
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f]{8}\.jpg$`), name)
	assert.NotEqual(t, name, GenerateImageName(".jpg"))
}

func TestMakeThumbnailScalesDown(t *testing.T) {
	thumb, err := MakeThumbnail(bytes.NewReader(testPNG(t, 800, 400)), ".png", 200)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestMakeThumbnailKeepsSmallImages(t *testing.T) {
	thumb, err := MakeThumbnail(bytes.NewReader(testPNG(t, 50, 40)), ".jpg", 200)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
}

func TestMakeThumbnailRejectsGarbage(t *testing.T) {
	_, err := MakeThumbnail(bytes.NewReader([]byte("not an image")), ".jpg", 200)
	assert.ErrorContains(t, err, "decode image")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "summer-t-shirts", Slugify("  Summer T-Shirts! "))
	assert.Equal(t, "nike", Slugify("NIKE"))
	assert.Equal(t, "", Slugify("***"))
}
