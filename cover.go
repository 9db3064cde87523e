// Cover image for epub export: a tiled pattern seeded from the book title,
// with the title and page count in a band across the middle.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	coverWidth  = 1200
	coverHeight = 1800
	tileSize    = 100

	bandTop    = 650
	bandBottom = 1150
)

// generateCover renders a PNG cover. The same title always gives the same
// pattern.
func generateCover(title string, pageCount int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{0xFF}), image.Point{}, draw.Src)

	drawTiles(img, sha256.Sum256([]byte(title)))

	titleFace, err := loadFace(gobold.TTF, 64)
	if err != nil {
		return nil, fmt.Errorf("loading bold font: %w", err)
	}
	metaFace, err := loadFace(goregular.TTF, 32)
	if err != nil {
		return nil, fmt.Errorf("loading regular font: %w", err)
	}

	drawTitleBand(img, title, pageCount, titleFace, metaFace)

	label := "wikicli"
	drawString(img, label, metaFace, coverWidth-40-font.MeasureString(metaFace, label).Ceil(), coverHeight-40)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding cover PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// drawTiles covers the image with square tiles, each split along one
// diagonal into a dark and a light half. Shade and diagonal come from the
// hash bytes.
func drawTiles(img *image.Gray, hash [32]byte) {
	cols, rows := coverWidth/tileSize, coverHeight/tileSize
	for row := 0; row < rows; row++ {
		y0 := row * tileSize
		if y0+tileSize > bandTop && y0 < bandBottom {
			continue
		}
		for col := 0; col < cols; col++ {
			b := hash[(row*cols+col)%len(hash)] ^ byte(row*29+col*7)
			dark := color.Gray{uint8(0x30 + int(b)*0x70/255)}
			light := color.Gray{uint8(0xB0 + int(b>>1)*0x40/127)}
			fillTile(img, col*tileSize, y0, b&1 == 1, dark, light)
		}
	}
}

// fillTile paints one tile. With flip the dark half is below the
// anti-diagonal instead of the main one.
func fillTile(img *image.Gray, x0, y0 int, flip bool, dark, light color.Gray) {
	for dy := 0; dy < tileSize; dy++ {
		for dx := 0; dx < tileSize; dx++ {
			below := dy > dx
			if flip {
				below = dy > tileSize-1-dx
			}
			c := light
			if below {
				c = dark
			}
			img.SetGray(x0+dx, y0+dy, c)
		}
	}
}

// drawTitleBand writes the word-wrapped title and the page count centred in
// a white band between two rules.
func drawTitleBand(img *image.Gray, title string, pageCount int, titleFace, metaFace font.Face) {
	const (
		padX     = 80
		maxWidth = coverWidth - padX*2
	)

	draw.Draw(img, image.Rect(0, bandTop, coverWidth, bandBottom),
		image.NewUniform(color.Gray{0xFF}), image.Point{}, draw.Src)
	for x := padX; x < coverWidth-padX; x++ {
		img.SetGray(x, bandTop+20, color.Gray{0x99})
		img.SetGray(x, bandBottom-20, color.Gray{0x99})
	}

	lines := wrapText(title, titleFace, maxWidth)
	lineHeight := titleFace.Metrics().Height.Ceil() + 8
	metaHeight := metaFace.Metrics().Height.Ceil() + 16
	y := bandTop + (bandBottom-bandTop-len(lines)*lineHeight-metaHeight)/2 + titleFace.Metrics().Ascent.Ceil()

	for _, line := range lines {
		drawString(img, line, titleFace, (coverWidth-font.MeasureString(titleFace, line).Ceil())/2, y)
		y += lineHeight
	}

	y += 16
	meta := fmt.Sprintf("%d pages", pageCount)
	if pageCount == 1 {
		meta = "1 page"
	}
	drawString(img, meta, metaFace, (coverWidth-font.MeasureString(metaFace, meta).Ceil())/2, y)
}

// drawString renders s in black with its baseline at y.
func drawString(img *image.Gray, s string, face font.Face, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{0x00}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// wrapText splits text into lines no wider than maxWidth pixels. A single
// word wider than maxWidth gets a line of its own.
func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if trial := current + " " + word; font.MeasureString(face, trial).Ceil() <= maxWidth {
			current = trial
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
