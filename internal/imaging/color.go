package imaging

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Separator is the background color separating the photos of a composite scan.
//
// Each component ranges from 0 to 255. The value is immutable for the lifetime
// of one extraction run and is compared exactly against the R, G and B
// channels of each pixel.
type Separator struct {
	R uint8 `json:"r" yaml:"r"` // Red component (0-255)
	G uint8 `json:"g" yaml:"g"` // Green component (0-255)
	B uint8 `json:"b" yaml:"b"` // Blue component (0-255)
}

// DefaultSeparator is the light green background used by the scanning workflow.
var DefaultSeparator = Separator{R: 181, G: 230, B: 29}

// ParseSeparator parses a separator color.
//
// Accepted forms:
//   - Hex: "#B5E61D", "B5E61D" or the short "#BE2"
//   - Components: "181,230,29", "181 230 29" or "[181, 230, 29]"
func ParseSeparator(s string) (Separator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Separator{}, fmt.Errorf("empty separator color")
	}

	trimmed := strings.Trim(s, "[]() ")
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	if len(fields) == 3 {
		var rgb [3]uint8
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				return Separator{}, fmt.Errorf("invalid separator component %q: %w", f, err)
			}
			rgb[i] = uint8(v)
		}
		return Separator{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
	}

	hex := s
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return Separator{}, fmt.Errorf("invalid separator color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Separator{R: r, G: g, B: b}, nil
}

// Hex returns the separator in "#RRGGBB" form.
func (s Separator) Hex() string {
	return strings.ToUpper(s.toColorful().Hex())
}

func (s Separator) String() string {
	return fmt.Sprintf("%s (%d,%d,%d)", s.Hex(), s.R, s.G, s.B)
}

// NRGBA returns the separator as an opaque color.
func (s Separator) NRGBA() color.NRGBA {
	return color.NRGBA{R: s.R, G: s.G, B: s.B, A: 255}
}

// Equal reports whether the given channels match the separator exactly.
func (s Separator) Equal(r, g, b uint8) bool {
	return r == s.R && g == s.G && b == s.B
}

// At reports whether the pixel at (x, y) of img is separator-colored.
// No bounds checking is performed; caller must ensure coordinates are valid.
func (s Separator) At(img *image.NRGBA, x, y int) bool {
	i := img.PixOffset(x, y)
	return s.Equal(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
}

func (s Separator) toColorful() colorful.Color {
	return colorful.Color{
		R: float64(s.R) / 255.0,
		G: float64(s.G) / 255.0,
		B: float64(s.B) / 255.0,
	}
}

// SeparatorEstimate is the result of DetectSeparator.
type SeparatorEstimate struct {
	Separator  Separator `json:"rgb"`
	Hex        string    `json:"hex"`
	Percentage float64   `json:"percentage"` // Share of border pixels with this color (0-100)
}

// DetectSeparator guesses the separator color of a composite scan.
//
// The photos of a composite scan never cover the outer frame entirely, so the
// most frequent exact color among the border pixels is taken as the
// background. Colors are not quantized: the separator must match exactly
// during extraction, so a quantized guess would be useless.
//
// Returns ErrEmptyImage if img has no pixels.
func DetectSeparator(img image.Image) (*SeparatorEstimate, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	counts := make(map[Separator]int)
	total := 0
	sample := func(x, y int) {
		// Straight alpha, as Separator.At compares against NRGBA pixels.
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		counts[Separator{R: c.R, G: c.G, B: c.B}]++
		total++
	}

	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		sample(x, bounds.Min.Y)
		if bounds.Dy() > 1 {
			sample(x, bounds.Max.Y-1)
		}
	}
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		sample(bounds.Min.X, y)
		if bounds.Dx() > 1 {
			sample(bounds.Max.X-1, y)
		}
	}

	type colorCount struct {
		sep   Separator
		count int
	}
	ranked := make([]colorCount, 0, len(counts))
	for sep, n := range counts {
		ranked = append(ranked, colorCount{sep, n})
	}
	// Ties resolve on the packed RGB value so the guess is deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].sep.packed() < ranked[j].sep.packed()
	})

	best := ranked[0]
	return &SeparatorEstimate{
		Separator:  best.sep,
		Hex:        best.sep.Hex(),
		Percentage: float64(best.count) / float64(total) * 100,
	}, nil
}

func (s Separator) packed() uint32 {
	return uint32(s.R)<<16 | uint32(s.G)<<8 | uint32(s.B)
}
