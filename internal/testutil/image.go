// Package testutil generates synthetic images for tests.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextImage renders lines of black text on a white background using the
// fixed 7x13 bitmap face. Line spacing is 20px starting at y=30.
func TextImage(width, height int, lines ...string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	y := 30
	for _, line := range lines {
		drawer.Dot = fixed.P(20, y)
		drawer.DrawString(line)
		y += 20
	}
	return img
}

// WriteTextImagePNG renders a text image and writes it to dir, returning
// the file path.
func WriteTextImagePNG(t *testing.T, dir string, width, height int, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "text.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, TextImage(width, height, lines...)))
	require.NoError(t, f.Close())
	return path
}
