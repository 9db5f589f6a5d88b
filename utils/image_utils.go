package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const thumbnailJPEGQuality = 85

// GenerateImageName returns a collision-resistant filename: unix nanoseconds,
// a random suffix and the given extension (including the dot).
func GenerateImageName(ext string) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

// MakeThumbnail decodes src and scales it to fit within a width x width box.
// Images already smaller than the box are re-encoded unchanged. PNG and GIF
// keep their format; everything else, webp included, is written as JPEG.
func MakeThumbnail(src io.Reader, ext string, width int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if width > 0 && (b.Dx() > width || b.Dy() > width) {
		g := gift.New(gift.ResizeToFit(width, width, gift.LanczosResampling))
		dst := image.NewRGBA(g.Bounds(b))
		g.Draw(dst, img)
		img = dst
	}

	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".png":
		err = png.Encode(&buf, img)
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailJPEGQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}
