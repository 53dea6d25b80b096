// Package deskew measures and removes the residual rotation of photos cut out
// of a composite scan.
//
// A photo placed slightly askew on the scanner glass is extracted with its
// axis-aligned bounding box, so its corners are filled with separator color.
// CorrectSkew paints the separator black, finds the photo's straight borders
// with Canny and Hough, takes the median orientation and rotates the region
// back, then crops to the remaining non-black content.
//
// # Angle Convention
//
// Angles are in degrees, positive for content tilted clockwise as seen on
// screen. Line orientations are folded into [-45, 45) so the horizontal and
// vertical borders of one photo report the same tilt.
//
// # Error Handling
//
// A region without any detectable line cannot be measured; CorrectSkew and
// EstimateSkew then return an error wrapping ErrSkewDetection and leave the
// region untouched. Callers decide whether to keep the unrotated region.
package deskew
