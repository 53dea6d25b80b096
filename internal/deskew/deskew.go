package deskew

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/scan-splitter/internal/detection"
	scanimg "github.com/ironsheep/scan-splitter/internal/imaging"
)

// ErrSkewDetection is returned when no straight line can be found in a region,
// so its skew cannot be measured.
var ErrSkewDetection = errors.New("skew detection failed")

// Options tunes skew estimation and correction.
type Options struct {
	// CannyLow and CannyHigh are the hysteresis thresholds (0-255).
	CannyLow  int `yaml:"canny_low" json:"canny_low"`
	CannyHigh int `yaml:"canny_high" json:"canny_high"`

	// HoughThreshold is the minimum votes per line; 0 selects an adaptive
	// threshold.
	HoughThreshold int `yaml:"hough_threshold" json:"hough_threshold"`

	// MaxLines caps how many of the strongest lines vote on the angle.
	// 0 keeps all of them.
	MaxLines int `yaml:"max_lines" json:"max_lines"`

	// MinAngle is the smallest skew, in degrees, that is corrected.
	MinAngle float64 `yaml:"min_angle" json:"min_angle"`

	// Padding is the width of the black frame added around a region before
	// edge detection, so photo borders touching the region edge are found.
	Padding int `yaml:"padding" json:"padding"`
}

// DefaultOptions returns the settings used by the scanning workflow.
func DefaultOptions() Options {
	return Options{
		CannyLow:  100,
		CannyHigh: 100,
		MinAngle:  0.5,
		Padding:   4,
	}
}

var black = color.NRGBA{A: 255}

// IsAxisAligned reports whether a region needs no correction: its left
// column, scanned from the bottom row upward, is entirely separator-colored.
func IsAxisAligned(img *image.NRGBA, sep scanimg.Separator) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		if !sep.At(img, b.Min.X, y) {
			return false
		}
	}
	return true
}

// Estimate is the outcome of skew measurement.
type Estimate struct {
	// Angle is the clockwise tilt of the content in degrees, in [-45, 45).
	Angle float64 `json:"angle"`
	// Lines is the number of Hough lines that voted.
	Lines int `json:"lines"`
	// Angles holds each line's folded orientation, sorted.
	Angles []float64 `json:"angles,omitempty"`
}

// EstimateSkew measures how far the content of img is rotated.
//
// # Algorithm
//
//  1. Copy img onto a black canvas with a Padding-wide frame, painting every
//     separator pixel black
//  2. Detect edges with Canny
//  3. Find straight lines with the Hough transform
//  4. Fold each line's orientation into [-45°, 45°) so the horizontal and
//     vertical borders of one photo agree
//  5. Take the median
//
// Returns ErrSkewDetection if no line is found and imaging.ErrEmptyImage for
// an empty image.
func EstimateSkew(img image.Image, sep scanimg.Separator, opts Options) (*Estimate, error) {
	canvas, err := prepare(img, sep, opts.Padding)
	if err != nil {
		return nil, err
	}
	return estimate(canvas, opts)
}

func estimate(canvas *image.NRGBA, opts Options) (*Estimate, error) {
	edges := scanimg.Canny(canvas, opts.CannyLow, opts.CannyHigh)
	lines := detection.HoughLines(edges, detection.HoughParams{
		Threshold: opts.HoughThreshold,
		MaxLines:  opts.MaxLines,
	})
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no lines among %d edge pixels", ErrSkewDetection, edges.Count())
	}

	angles := make([]float64, len(lines))
	for i, l := range lines {
		angles[i] = fold(l.AngleDegrees())
	}
	return &Estimate{
		Angle:  median(angles),
		Lines:  len(lines),
		Angles: angles,
	}, nil
}

// CorrectSkew straightens a region extracted from a composite scan.
//
// A region whose left column is entirely separator-colored is returned
// unchanged. Otherwise the skew is estimated (see EstimateSkew). A tilt below
// opts.MinAngle is treated as scanner noise rather than rotated away, and the
// region is returned unchanged; set MinAngle to 0 to rotate by every measured
// angle. Larger skews are corrected by rotating the blackened, padded region the other way on an
// expanding black canvas and cropping to the box of non-black pixels.
//
// The returned SubImage keeps the Index of region, carries the new box in
// rotated-canvas coordinates and records the removed tilt in Skew. region is
// not modified.
func CorrectSkew(region detection.SubImage, sep scanimg.Separator, opts Options) (detection.SubImage, error) {
	if region.Pixels == nil {
		return region, scanimg.ErrEmptyImage
	}
	if IsAxisAligned(region.Pixels, sep) {
		return region, nil
	}

	canvas, err := prepare(region.Pixels, sep, opts.Padding)
	if err != nil {
		return region, err
	}
	est, err := estimate(canvas, opts)
	if err != nil {
		return region, fmt.Errorf("region %d: %w", region.Index, err)
	}
	if math.Abs(est.Angle) < opts.MinAngle {
		return region, nil
	}

	rotated := transform.Rotate(canvas, -est.Angle, &transform.RotationOptions{ResizeBounds: true})
	bounds := rotated.Bounds()
	flat := imaging.Overlay(imaging.New(bounds.Dx(), bounds.Dy(), black), rotated, image.Pt(0, 0), 1.0)

	box, ok := contentBox(flat)
	if !ok {
		return region, fmt.Errorf("%w: region %d is empty after rotation", ErrSkewDetection, region.Index)
	}
	pixels, err := scanimg.CopyRect(flat, box.Rect())
	if err != nil {
		return region, fmt.Errorf("region %d: %w", region.Index, err)
	}

	return detection.SubImage{
		Index:  region.Index,
		Box:    box,
		Pixels: pixels,
		Skew:   est.Angle,
	}, nil
}

// prepare copies img onto a black canvas with a frame of the given width and
// paints every separator pixel black.
func prepare(img image.Image, sep scanimg.Separator, padding int) (*image.NRGBA, error) {
	src, err := scanimg.Normalize(img)
	if err != nil {
		return nil, err
	}
	if padding < 0 {
		padding = 0
	}
	b := src.Bounds()
	canvas := imaging.Paste(imaging.New(b.Dx()+2*padding, b.Dy()+2*padding, black), src, image.Pt(padding, padding))

	for y := padding; y < padding+b.Dy(); y++ {
		for x := padding; x < padding+b.Dx(); x++ {
			if sep.At(canvas, x, y) {
				canvas.SetNRGBA(x, y, black)
			}
		}
	}
	return canvas, nil
}

// contentBox returns the smallest box holding every non-black pixel.
func contentBox(img *image.NRGBA) (detection.BoundingBox, bool) {
	b := img.Bounds()
	var box detection.BoundingBox
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			if img.Pix[i] == 0 && img.Pix[i+1] == 0 && img.Pix[i+2] == 0 {
				continue
			}
			if !found {
				box = detection.PointBox(x, y)
				found = true
				continue
			}
			box.Extend(x, y)
		}
	}
	return box, found
}

// fold maps a line orientation in degrees into [-45, 45).
func fold(deg float64) float64 {
	f := math.Mod(deg+45, 90)
	if f < 0 {
		f += 90
	}
	if f >= 90 {
		f -= 90
	}
	return f - 45
}

// median returns the middle value of values, averaging the two central values
// for an even count. values is reordered.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
