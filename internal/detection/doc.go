// Package detection finds the photos of a composite scan and the straight
// lines used to measure their skew.
//
// # Region Extraction
//
// A composite scan is a set of photos laid out on a uniform separator color.
// ExtractAll (or a step-wise Session) repeatedly:
//
//  1. Seeds on the first non-separator pixel in row-major order
//  2. Grows the region with an iterative flood fill, 8-connected by default
//  3. Copies the pixels under the region's bounding box into a SubImage
//  4. Paints that box with the separator in a private working copy
//
// until only separator pixels remain. The caller's image is never modified
// and each SubImage owns its pixels.
//
// # Line Detection
//
// HoughLines runs a standard Hough transform over a binary edge map
// (see imaging.Canny) and returns (rho, theta) lines ordered by votes.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - BoundingBox edges are all inclusive; Rect converts to the exclusive
//     image.Rectangle form
//
// # Performance Considerations
//
// Extraction visits every pixel a bounded number of times and keeps one
// bitmap and one explicit stack per session, so large photos cannot overflow
// the goroutine stack. The Hough transform costs 180 votes per edge pixel.
package detection
