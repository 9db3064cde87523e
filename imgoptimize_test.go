package main

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// makePNG creates a solid-color PNG image at the given dimensions.
func makePNG(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	return img
}

func animatedGIF() []byte {
	palette := color.Palette{color.White, color.Black}
	g := &gif.GIF{
		Image: []*image.Paletted{
			image.NewPaletted(image.Rect(0, 0, 2, 2), palette),
			image.NewPaletted(image.Rect(0, 0, 2, 2), palette),
		},
		Delay: []int{10, 10},
	}
	var buf bytes.Buffer
	gif.EncodeAll(&buf, g)
	return buf.Bytes()
}

func TestOptimizeImage_MaxWidth(t *testing.T) {
	opts := optimizeOpts{maxWidth: 800, quality: 60}

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"wide", 1200, 900, 800, 600},
		{"narrow", 400, 1200, 400, 1200},
		{"small", 200, 150, 200, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := optimizeImage(makePNG(tt.w, tt.h, color.NRGBA{255, 0, 0, 255}), "image/png", opts)
			if !ok {
				t.Fatal("expected image to be re-encoded")
			}
			b := decodeJPEG(t, out).Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestOptimizeImage_Grayscale(t *testing.T) {
	out, ok := optimizeImage(makePNG(10, 10, color.NRGBA{255, 0, 0, 255}), "image/png", optimizeOpts{grayscale: true})
	if !ok {
		t.Fatal("expected image to be re-encoded")
	}
	if _, isGray := decodeJPEG(t, out).(*image.Gray); !isGray {
		t.Error("expected a grayscale JPEG")
	}
}

func TestOptimizeImage_Disabled(t *testing.T) {
	if _, ok := optimizeImage(makePNG(10, 10, color.White), "image/png", optimizeOpts{quality: 60}); ok {
		t.Error("no max width and no grayscale should leave the image alone")
	}
}

func TestOptimizeImage_PassThrough(t *testing.T) {
	opts := optimizeOpts{maxWidth: 800, quality: 60}
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"svg", []byte("<svg></svg>"), "image/svg+xml"},
		{"avif", []byte{0x00}, "image/avif"},
		{"animated gif", animatedGIF(), "image/gif"},
	}
	for _, tt := range tests {
		if _, ok := optimizeImage(tt.data, tt.mime, opts); ok {
			t.Errorf("%s should be passed through", tt.name)
		}
	}
}

func TestOptimizeImage_StaticGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 100, 100), color.Palette{color.White, color.Black})
	var buf bytes.Buffer
	gif.Encode(&buf, img, nil)
	out, ok := optimizeImage(buf.Bytes(), "image/gif", optimizeOpts{maxWidth: 800, quality: 60})
	if !ok {
		t.Fatal("static GIF should be re-encoded")
	}
	decodeJPEG(t, out)
}

func TestOptimizeImage_InvalidData(t *testing.T) {
	if _, ok := optimizeImage([]byte("not an image"), "image/png", optimizeOpts{maxWidth: 800}); ok {
		t.Error("undecodable data should be kept as is")
	}
}

func TestOptimizeImage_QualityOutOfRange(t *testing.T) {
	data := makePNG(50, 50, color.NRGBA{0, 128, 255, 255})
	for _, q := range []int{0, -3, 120} {
		if _, ok := optimizeImage(data, "image/png", optimizeOpts{maxWidth: 20, quality: q}); !ok {
			t.Errorf("quality %d: expected fallback quality to be used", q)
		}
	}
}

func TestFlattenAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{0, 0, 0, 0})
	r, g, b, _ := flattenAlpha(src).At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("transparent pixel should become white, got %x %x %x", r, g, b)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0.0B"},
		{1023, "1023.0B"},
		{1024, "1.0KB"},
		{1048576, "1.0MB"},
		{1073741824, "1.0GB"},
		{1099511627776, "1.0TB"},
		{1125899906842624, "1.0TB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.input); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsAnimatedGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.White, color.Black})
	var buf bytes.Buffer
	gif.Encode(&buf, img, nil)
	if isAnimatedGIF(buf.Bytes()) {
		t.Error("single-frame GIF should not be animated")
	}
	if !isAnimatedGIF(animatedGIF()) {
		t.Error("multi-frame GIF should be animated")
	}
	if isAnimatedGIF([]byte("not a gif")) {
		t.Error("invalid data should return false")
	}
}
