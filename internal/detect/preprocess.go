package detect

import (
	"fmt"
	"image"
	"io"

	// Decoders for the formats a camera or upload is likely to send.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeImage reads a JPEG, PNG or WebP image.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeImage, err)
	}
	return img, nil
}

// Preprocess stretches img to width x height and returns a planar NCHW
// float32 RGB blob scaled to [0, 1].
func Preprocess(img image.Image, width, height int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := width * height
	blob := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := dst.PixOffset(x, y)
			i := y*width + x
			blob[i] = float32(dst.Pix[off]) / 255
			blob[plane+i] = float32(dst.Pix[off+1]) / 255
			blob[2*plane+i] = float32(dst.Pix[off+2]) / 255
		}
	}

	return blob
}
