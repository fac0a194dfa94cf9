package marcher

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/HugoSmits86/nativewebp"
)

// ToRGBA converts a packed ARGB frame into an image.RGBA of the given
// dimensions. Alpha is copied through unchanged.
func ToRGBA(buf []uint32, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, word := range buf {
		r, g, b, a := UnpackColor(word)
		j := i * 4
		img.Pix[j+0] = r
		img.Pix[j+1] = g
		img.Pix[j+2] = b
		img.Pix[j+3] = a
	}
	return img
}

// SavePNG writes a packed frame to a PNG file.
func SavePNG(path string, buf []uint32, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, ToRGBA(buf, width, height)); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	return nil
}

// SaveWebP writes a packed frame to a lossless WebP file.
func SaveWebP(path string, buf []uint32, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save webp: %w", err)
	}
	defer f.Close()
	if err := nativewebp.Encode(f, ToRGBA(buf, width, height), nil); err != nil {
		return fmt.Errorf("save webp: %w", err)
	}
	return nil
}
