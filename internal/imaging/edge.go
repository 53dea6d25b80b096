package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// EdgeMap is a binary edge image produced by Canny.
//
// Pixels are stored row-major; Pix[y*Width+x] is true when (x, y) lies on a
// detected edge. Coordinates are relative to the analyzed image's top-left
// corner.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []bool
}

// At reports whether (x, y) is an edge pixel. Out-of-range coordinates are
// never edges.
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Count returns the number of edge pixels.
func (m *EdgeMap) Count() int {
	n := 0
	for _, e := range m.Pix {
		if e {
			n++
		}
	}
	return n
}

// Gray renders the edge map as a grayscale image, edges white on black.
func (m *EdgeMap) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, e := range m.Pix {
		if e {
			out.Pix[i] = 255
		}
	}
	return out
}

// Intensity converts img to a single-channel luminance image.
func Intensity(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	out := image.NewGray(image.Rect(0, 0, rgba.Rect.Dx(), rgba.Rect.Dy()))
	for i := range out.Pix {
		out.Pix[i] = rgba.Pix[i*4]
	}
	return out
}

// Canny performs Canny edge detection on an image.
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - thresholdLow: Low hysteresis threshold (0-255). Gradients below it are
//     discarded.
//   - thresholdHigh: High hysteresis threshold (0-255). Gradients above it are
//     always kept.
//
// # Algorithm
//
//  1. Grayscale conversion to luminance
//  2. Gaussian blur to reduce noise
//  3. Gradient computation: Sobel operators for X and Y gradients
//     magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx)
//  4. Non-maximum suppression: thin edges to 1-pixel width by keeping only
//     local maxima in the gradient direction
//  5. Hysteresis thresholding: weak edges survive only next to strong ones
//
// Pixels on the outermost row and column are never edges; callers that need
// edges on the image frame pad the image first.
func Canny(img image.Image, thresholdLow, thresholdHigh int) *EdgeMap {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := &EdgeMap{Width: width, Height: height, Pix: make([]bool, width*height)}
	if width == 0 || height == 0 {
		return edges
	}

	blurred := blur.Gaussian(Intensity(img), 2)
	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lum[y*width+x] = float64(blurred.Pix[blurred.PixOffset(x+blurred.Rect.Min.X, y+blurred.Rect.Min.Y)]) / 255.0
		}
	}

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := lum[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			angle := direction[y*width+x]
			mag := magnitude[y*width+x]

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1 = magnitude[y*width+x-1]
				n2 = magnitude[y*width+x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1 = magnitude[(y-1)*width+x+1]
				n2 = magnitude[(y+1)*width+x-1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1 = magnitude[(y-1)*width+x]
				n2 = magnitude[(y+1)*width+x]
			default:
				n1 = magnitude[(y-1)*width+x-1]
				n2 = magnitude[(y+1)*width+x+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y*width+x] = mag
			}
		}
	}

	// Double threshold and edge tracking by hysteresis
	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y*width+x]
			if val <= 0 {
				continue
			}
			if val >= highThresh {
				edges.Pix[y*width+x] = true
				continue
			}
			if val < lowThresh {
				continue
			}
			strong := false
			for ky := -1; ky <= 1 && !strong; ky++ {
				for kx := -1; kx <= 1 && !strong; kx++ {
					if suppressed[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)] >= highThresh {
						strong = true
					}
				}
			}
			edges.Pix[y*width+x] = strong
		}
	}

	return edges
}

// EdgeImage runs Canny and returns the edge map as a grayscale image.
func EdgeImage(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	return Canny(img, thresholdLow, thresholdHigh).Gray()
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
