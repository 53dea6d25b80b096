package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// OverlayResult contains a preview of detected regions drawn over a scan.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Boxes       int    `json:"boxes"`
}

// OutlineBoxes draws a one-pixel outline around each rectangle and labels it
// with its position in the list, starting at 1.
//
// Parameters:
//   - img: Source image. It is not modified.
//   - boxes: Rectangles in image.Rectangle semantics (Max exclusive).
//   - colorHex: Outline color as "#RRGGBB". Falls back to red when invalid.
//
// Returns the annotated copy encoded as PNG.
func OutlineBoxes(img image.Image, boxes []image.Rectangle, colorHex string) (*OverlayResult, error) {
	outline := color.NRGBA{R: 255, A: 255}
	if c, err := colorful.Hex(colorHex); err == nil {
		r, g, b := c.RGB255()
		outline = color.NRGBA{R: r, G: g, B: b, A: 255}
	}

	result := DrawOutlines(img, boxes, outline)
	labelColor := color.NRGBA{255, 255, 255, 255}
	bgColor := color.NRGBA{0, 0, 0, 200}
	for i, r := range boxes {
		drawLabel(result, r.Min.X+2, r.Min.Y+2, fmt.Sprintf("%d", i+1), labelColor, bgColor)
	}

	encoded, err := EncodePNGBase64(result)
	if err != nil {
		return nil, err
	}

	bounds := result.Bounds()
	return &OverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Boxes:       len(boxes),
	}, nil
}

// DrawOutlines returns a copy of img with each rectangle outlined in c.
func DrawOutlines(img image.Image, boxes []image.Rectangle, c color.Color) *image.NRGBA {
	result := Clone(img)
	offset := img.Bounds().Min
	src := image.NewUniform(c)
	for _, r := range boxes {
		r = r.Sub(offset)
		if r.Empty() {
			continue
		}
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
			image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
			image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(result, e.Intersect(result.Bounds()), src, image.Point{}, draw.Src)
		}
	}
	return result
}

// drawLabel draws a simple numeric label at the given position.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	// 3x5 pixel digits
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	inside := func(px, py int) bool {
		return px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y
	}

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if px, py := x+dx, y+dy; inside(px, py) {
				img.SetNRGBA(px, py, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if px, py := cx+col, y+row; inside(px, py) {
					img.SetNRGBA(px, py, fg)
				}
			}
		}
		cx += charWidth
	}
}
