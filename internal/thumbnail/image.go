package thumbnail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	// Raster decoders registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	// Additional formats from x/image.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageThumbnail decodes a raster image and renders it onto the fixed
// preview square.
func (g *Generator) imageThumbnail(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	return encodeDataURI(scaleToSquare(src))
}

// scaleToSquare renders src centered on a ThumbnailSize square canvas,
// scaled so the longer edge spans the canvas. Output dimensions are always
// ThumbnailSize x ThumbnailSize; the remainder is padded white to match the
// text cards.
func scaleToSquare(src image.Image) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, ThumbnailSize, ThumbnailSize))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return dst
	}

	var dw, dh int
	if w >= h {
		dw = ThumbnailSize
		dh = h * ThumbnailSize / w
	} else {
		dh = ThumbnailSize
		dw = w * ThumbnailSize / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	x := (ThumbnailSize - dw) / 2
	y := (ThumbnailSize - dh) / 2
	draw.ApproxBiLinear.Scale(dst, image.Rect(x, y, x+dw, y+dh), src, b, draw.Over, nil)
	return dst
}

// encodeDataURI renders the image as a base64 PNG data URI.
func encodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
