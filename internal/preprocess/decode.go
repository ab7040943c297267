package preprocess

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/quillscan/quillscan/internal/ocr"
)

// DecodeError wraps failures while loading or decoding an image file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &DecodeError{Path: path, Err: errors.New("empty path")}
	}
	if !ocr.IsImagePath(path) {
		return nil, ImageMetadata{}, &DecodeError{
			Path: path,
			Err:  fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &DecodeError{Path: path, Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &DecodeError{Path: path, Err: err}
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}
