package detection

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// ErrExtraction is returned when region growing breaks one of its own
// invariants. It indicates a bug rather than bad input.
var ErrExtraction = errors.New("region extraction failed")

// BoundingBox is an axis-aligned rectangle in pixel coordinates.
//
// Unlike image.Rectangle, all four edges are inclusive: a single-pixel box has
// Top == Bottom and Left == Right.
type BoundingBox struct {
	Top    int `json:"top" yaml:"top"`
	Left   int `json:"left" yaml:"left"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Right  int `json:"right" yaml:"right"`
}

// PointBox returns the single-pixel box at (x, y).
func PointBox(x, y int) BoundingBox {
	return BoundingBox{Top: y, Left: x, Bottom: y, Right: x}
}

// Width returns the number of columns covered by the box.
func (b BoundingBox) Width() int { return b.Right - b.Left + 1 }

// Height returns the number of rows covered by the box.
func (b BoundingBox) Height() int { return b.Bottom - b.Top + 1 }

// Rect converts the box to an image.Rectangle (Max exclusive).
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right+1, b.Bottom+1)
}

// Contains reports whether (x, y) lies inside the box.
func (b BoundingBox) Contains(x, y int) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// Extend widens the box so that it contains (x, y). The box never shrinks.
func (b *BoundingBox) Extend(x, y int) {
	if x < b.Left {
		b.Left = x
	}
	if x > b.Right {
		b.Right = x
	}
	if y < b.Top {
		b.Top = y
	}
	if y > b.Bottom {
		b.Bottom = y
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[top=%d left=%d bottom=%d right=%d]", b.Top, b.Left, b.Bottom, b.Right)
}

// SubImage is one photo cut out of a composite scan.
type SubImage struct {
	// Index is the discovery order within the source scan, starting at 0.
	Index int `json:"index"`

	// Box locates the region in the source scan. After a skew correction it
	// locates the cropped content on the rotated canvas instead.
	Box BoundingBox `json:"box"`

	// Pixels is an independent copy of the region. It never aliases the
	// source raster or the extraction working copy.
	Pixels *image.NRGBA `json:"-"`

	// Skew is the clockwise tilt, in degrees, removed by deskewing. Zero when
	// the region was not rotated.
	Skew float64 `json:"skew"`
}

// Connectivity selects which neighbors join a region.
type Connectivity int

const (
	// Connectivity8 joins pixels that touch by an edge or a corner.
	Connectivity8 Connectivity = 8
	// Connectivity4 joins pixels that share an edge only.
	Connectivity4 Connectivity = 4
)

// ExtractOptions tunes region growing.
type ExtractOptions struct {
	// Connectivity is 8 or 4. Zero means 8.
	Connectivity Connectivity
}

var (
	neighbors4 = []image.Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	neighbors8 = []image.Point{
		{-1, -1}, {0, -1}, {1, -1},
		{-1, 0}, {1, 0},
		{-1, 1}, {0, 1}, {1, 1},
	}
)

func (o ExtractOptions) neighbors() ([]image.Point, error) {
	switch o.Connectivity {
	case 0, Connectivity8:
		return neighbors8, nil
	case Connectivity4:
		return neighbors4, nil
	default:
		return nil, fmt.Errorf("invalid connectivity %d: must be 4 or 8", o.Connectivity)
	}
}

// Session extracts the regions of one composite scan, one at a time.
//
// The session owns a private working copy of the scan. Each call to Next
// finds the next foreground seed, grows its region, copies the pixels under
// the region's bounding box and then paints that box with the separator so
// the region is never found again. A Session is not safe for concurrent use.
type Session struct {
	work      *image.NRGBA
	sep       imaging.Separator
	neighbors []image.Point

	// visited marks pixels already pushed during growth. Every visited
	// pixel ends up inside a repainted box, so the bitmap is never reset.
	visited []bool
	stack   []image.Point
	cursor  int

	regions []SubImage
}

// NewSession prepares an extraction session over a copy of img.
//
// Returns imaging.ErrEmptyImage if img has no pixels, or an error if the
// options are invalid. img itself is never modified.
func NewSession(img image.Image, sep imaging.Separator, opts ExtractOptions) (*Session, error) {
	nb, err := opts.neighbors()
	if err != nil {
		return nil, err
	}
	work, err := imaging.Normalize(img)
	if err != nil {
		return nil, err
	}
	b := work.Bounds()
	return &Session{
		work:      work,
		sep:       sep,
		neighbors: nb,
		visited:   make([]bool, b.Dx()*b.Dy()),
	}, nil
}

// Next extracts the next region in row-major order of its seed pixel.
//
// Returns:
//   - SubImage: The extracted region, valid only when ok is true.
//   - ok: False once the working copy is entirely separator-colored.
//   - error: Wraps ErrExtraction if an internal invariant does not hold.
//
// # Algorithm
//
//  1. Seed: scan the working copy row-major from the previous seed for the
//     first pixel that differs from the separator.
//  2. Grow: iterative flood fill over non-separator neighbors, widening the
//     bounding box at every visited pixel.
//  3. Copy: clone the pixels under the final box.
//  4. Erase: paint the box with the separator in the working copy.
func (s *Session) Next() (SubImage, bool, error) {
	width := s.work.Rect.Dx()
	height := s.work.Rect.Dy()

	seed := -1
	for i := s.cursor; i < width*height; i++ {
		if !s.sep.At(s.work, i%width, i/width) {
			seed = i
			break
		}
	}
	if seed < 0 {
		s.cursor = width * height
		return SubImage{}, false, nil
	}
	s.cursor = seed
	sx, sy := seed%width, seed/width

	box := s.grow(sx, sy)

	if !box.Contains(sx, sy) {
		return SubImage{}, false, fmt.Errorf("%w: seed (%d,%d) outside its box %v", ErrExtraction, sx, sy, box)
	}
	if !box.Rect().In(s.work.Rect) {
		return SubImage{}, false, fmt.Errorf("%w: box %v outside image %dx%d", ErrExtraction, box, width, height)
	}

	pixels, err := imaging.CopyRect(s.work, box.Rect())
	if err != nil {
		return SubImage{}, false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	imaging.FillRect(s.work, box.Rect(), s.sep.NRGBA())

	if !s.sep.At(s.work, sx, sy) {
		return SubImage{}, false, fmt.Errorf("%w: seed (%d,%d) still foreground after erase", ErrExtraction, sx, sy)
	}

	region := SubImage{
		Index:  len(s.regions),
		Box:    box,
		Pixels: pixels,
	}
	s.regions = append(s.regions, region)
	return region, true, nil
}

// grow flood-fills the foreground component containing (sx, sy) and returns
// its bounding box.
func (s *Session) grow(sx, sy int) BoundingBox {
	width := s.work.Rect.Dx()
	height := s.work.Rect.Dy()

	box := PointBox(sx, sy)
	s.visited[sy*width+sx] = true
	s.stack = append(s.stack[:0], image.Point{X: sx, Y: sy})

	for len(s.stack) > 0 {
		p := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		box.Extend(p.X, p.Y)

		for _, d := range s.neighbors {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || nx >= width || ny < 0 || ny >= height {
				continue
			}
			idx := ny*width + nx
			if s.visited[idx] || s.sep.At(s.work, nx, ny) {
				continue
			}
			s.visited[idx] = true
			s.stack = append(s.stack, image.Point{X: nx, Y: ny})
		}
	}
	return box
}

// Done reports whether every pixel of the working copy is separator-colored.
func (s *Session) Done() bool {
	width := s.work.Rect.Dx()
	height := s.work.Rect.Dy()
	for i := s.cursor; i < width*height; i++ {
		if !s.sep.At(s.work, i%width, i/width) {
			return false
		}
	}
	return true
}

// Regions returns the regions extracted so far, in discovery order.
func (s *Session) Regions() []SubImage {
	out := make([]SubImage, len(s.regions))
	copy(out, s.regions)
	return out
}

// ExtractAll splits a composite scan into its sub-images.
//
// Parameters:
//   - img: The composite scan. It is not modified.
//   - sep: The background color separating the photos.
//   - opts: Growth options; the zero value selects 8-connectivity.
//
// Returns the sub-images in row-major order of their first pixel. An image
// made entirely of the separator yields an empty slice and no error.
//
// Regions whose bounding boxes overlap are not separated: erasing the first
// box also erases whatever part of the second lies under it.
func ExtractAll(img image.Image, sep imaging.Separator, opts ExtractOptions) ([]SubImage, error) {
	session, err := NewSession(img, sep, opts)
	if err != nil {
		return nil, err
	}
	for {
		_, ok, err := session.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return session.Regions(), nil
		}
	}
}

// RegionsResult contains the bounding boxes found in a scan.
type RegionsResult struct {
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Regions []BoundingBox `json:"regions"`
	Count   int           `json:"count"`
}

// FindRegions reports the bounding boxes of every region without keeping
// their pixels.
func FindRegions(img image.Image, sep imaging.Separator, opts ExtractOptions) (*RegionsResult, error) {
	regions, err := ExtractAll(img, sep, opts)
	if err != nil {
		return nil, err
	}
	boxes := make([]BoundingBox, len(regions))
	for i, r := range regions {
		boxes[i] = r.Box
	}
	b := img.Bounds()
	return &RegionsResult{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Regions: boxes,
		Count:   len(boxes),
	}, nil
}
