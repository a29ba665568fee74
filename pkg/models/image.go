package models

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// DefaultImageSize is used for images whose header cannot be read.
const DefaultImageSize = 255

// ReadImage reads an image header and reports its size and whether its
// color model carries alpha. Pixels are not decoded, so decoders that report
// RGBAModel for opaque truecolor data count as alpha-free.
func ReadImage(name string, r io.Reader) (*Image, error) {
	cfg, err := decodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	return &Image{
		Name:     name,
		Width:    cfg.Width,
		Height:   cfg.Height,
		HasAlpha: modelHasAlpha(cfg.ColorModel),
	}, nil
}

// decodeConfig picks a decoder by magic bytes. TGA has no signature, so it
// is tried last. The tga package registers itself with an empty magic that
// matches any input, which is why image.DecodeConfig is not used.
func decodeConfig(r io.Reader) (image.Config, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)

	switch {
	case bytes.HasPrefix(head, []byte("\x89PNG\r\n\x1a\n")):
		return png.DecodeConfig(br)
	case bytes.HasPrefix(head, []byte{0xff, 0xd8}):
		return jpeg.DecodeConfig(br)
	case bytes.HasPrefix(head, []byte("BM")):
		return bmp.DecodeConfig(br)
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return webp.DecodeConfig(br)
	}
	return tga.DecodeConfig(br)
}

// ReadImageFile reads the header of an image on disk.
func ReadImageFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return ReadImage(filepath.Base(path), f)
}

// ReadImageBytes reads the header of an in-memory encoded image.
func ReadImageBytes(name string, data []byte) (*Image, error) {
	return ReadImage(name, bytes.NewReader(data))
}

// FallbackImage returns the placeholder used when an image cannot be read.
func FallbackImage(name string) *Image {
	return &Image{Name: name, Width: DefaultImageSize, Height: DefaultImageSize}
}

func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
