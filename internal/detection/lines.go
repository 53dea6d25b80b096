package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// Line is a straight line in Hough normal form: x*cos(Theta) + y*sin(Theta) = Rho.
type Line struct {
	Rho   float64 `json:"rho"`   // Signed distance from the origin in pixels
	Theta float64 `json:"theta"` // Normal angle in radians, [0, π)
	Votes int     `json:"votes"` // Edge pixels supporting the line
}

// AngleDegrees returns the orientation of the line's direction vector in
// degrees, in (-180, 180]. A horizontal line yields 0 or 180, a vertical one
// ±90.
func (l Line) AngleDegrees() float64 {
	return math.Atan2(math.Cos(l.Theta), -math.Sin(l.Theta)) * 180 / math.Pi
}

// HoughParams controls line detection.
type HoughParams struct {
	// Threshold is the minimum number of votes for a line. Zero selects an
	// adaptive threshold of half the strongest peak, but at least
	// MinAdaptiveVotes.
	Threshold int

	// MaxLines caps the number of lines returned, strongest first.
	// Zero means no cap.
	MaxLines int
}

// MinAdaptiveVotes is the floor of the adaptive Hough threshold.
const MinAdaptiveVotes = 10

// HoughLines finds straight lines in a binary edge map.
//
// The accumulator uses a 1 pixel rho step and a 1 degree theta step. A cell
// becomes a line when its votes reach the threshold and no cell in its 5x5
// neighborhood has more votes. Lines are returned strongest first; equal
// vote counts keep accumulator order.
func HoughLines(edges *imaging.EdgeMap, params HoughParams) []Line {
	width, height := edges.Width, edges.Height
	if width == 0 || height == 0 {
		return nil
	}

	maxDist := int(math.Ceil(math.Sqrt(float64(width*width + height*height))))
	numAngles := 180
	numRho := maxDist*2 + 1

	cosT := make([]float64, numAngles)
	sinT := make([]float64, numAngles)
	for theta := 0; theta < numAngles; theta++ {
		angle := float64(theta) * math.Pi / 180.0
		cosT[theta] = math.Cos(angle)
		sinT[theta] = math.Sin(angle)
	}

	accumulator := make([][]int, numRho)
	for i := range accumulator {
		accumulator[i] = make([]int, numAngles)
	}

	// Vote in Hough space
	peak := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges.Pix[y*width+x] {
				continue
			}
			for theta := 0; theta < numAngles; theta++ {
				rho := float64(x)*cosT[theta] + float64(y)*sinT[theta]
				rhoIdx := int(math.Round(rho)) + maxDist
				if rhoIdx >= 0 && rhoIdx < numRho {
					accumulator[rhoIdx][theta]++
					if accumulator[rhoIdx][theta] > peak {
						peak = accumulator[rhoIdx][theta]
					}
				}
			}
		}
	}

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = peak / 2
		if threshold < MinAdaptiveVotes {
			threshold = MinAdaptiveVotes
		}
	}

	lines := make([]Line, 0)
	for rhoIdx := 0; rhoIdx < numRho; rhoIdx++ {
		for theta := 0; theta < numAngles; theta++ {
			votes := accumulator[rhoIdx][theta]
			if votes < threshold {
				continue
			}
			// Check if local maximum
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				for dt := -2; dt <= 2 && isMax; dt++ {
					if dr == 0 && dt == 0 {
						continue
					}
					nr := rhoIdx + dr
					nt := theta + dt
					if nt < 0 || nt >= numAngles {
						// theta wraps onto -rho
						nt = (nt + numAngles) % numAngles
						nr = numRho - 1 - nr
					}
					if nr < 0 || nr >= numRho {
						continue
					}
					n := accumulator[nr][nt]
					// Ties go to the first cell in scan order.
					if n > votes || (n == votes && (nr < rhoIdx || (nr == rhoIdx && nt < theta))) {
						isMax = false
					}
				}
			}
			if isMax {
				lines = append(lines, Line{
					Rho:   float64(rhoIdx - maxDist),
					Theta: float64(theta) * math.Pi / 180.0,
					Votes: votes,
				})
			}
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Votes > lines[j].Votes
	})

	if params.MaxLines > 0 && len(lines) > params.MaxLines {
		lines = lines[:params.MaxLines]
	}
	return lines
}
