// Downscaling of saved images: resize, optional grayscale, JPEG re-encode.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

func humanSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(n)
	for _, u := range units {
		if math.Abs(f) < 1024 {
			return fmt.Sprintf("%.1f%s", f, u)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.1f%s", f, units[len(units)-1])
}

// optimizeOpts controls re-encoding of saved images. A zero maxWidth and
// grayscale off leave images untouched.
type optimizeOpts struct {
	maxWidth  int
	quality   int
	grayscale bool
}

func (o optimizeOpts) enabled() bool {
	return o.maxWidth > 0 || o.grayscale
}

// resize scales src to dstW x dstH with BiLinear resampling.
func resize(src image.Image, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func toGrayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// flattenAlpha composites src onto a white background.
func flattenAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}

// passThrough reports image types that are kept as downloaded.
func passThrough(data []byte, mime string) bool {
	switch {
	case strings.Contains(mime, "svg"), strings.Contains(mime, "avif"):
		return true
	case strings.Contains(mime, "gif"):
		return isAnimatedGIF(data)
	}
	return false
}

// optimizeImage re-encodes data as JPEG, narrowing it to opts.maxWidth
// (never upscaling). ok is false when the image should be kept as is.
func optimizeImage(data []byte, mime string, opts optimizeOpts) (out []byte, ok bool) {
	if !opts.enabled() || passThrough(data, mime) {
		return nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(logOut, "Warning: could not decode image (%s): %v\n", mime, err)
		return nil, false
	}
	img = flattenAlpha(img)

	b := img.Bounds()
	if w, h := b.Dx(), b.Dy(); opts.maxWidth > 0 && w > opts.maxWidth {
		newH := max(1, int(math.Round(float64(h)*float64(opts.maxWidth)/float64(w))))
		img = resize(img, opts.maxWidth, newH)
	}

	var enc image.Image = img
	if opts.grayscale {
		enc = toGrayscale(img)
	}

	quality := opts.quality
	if quality < 1 || quality > 95 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, enc, &jpeg.Options{Quality: quality}); err != nil {
		fmt.Fprintf(logOut, "Warning: JPEG encode failed: %v\n", err)
		return nil, false
	}
	return buf.Bytes(), true
}
