// Package imaging provides the raster primitives used to split composite scans.
//
// This package implements loading and normalization of scanned images, the
// separator color model, rectangle copy and repaint helpers, Canny edge
// detection, and a box overlay used to preview extracted regions. All
// operations use a coordinate system where (0,0) is at the top-left corner,
// X increases rightward, and Y increases downward.
//
// # Raster Model
//
// Every image handed to the extraction and deskew stages is an *image.NRGBA
// whose bounds start at (0,0) and whose channels are 8-bit. Decoders may
// produce paletted, gray, YCbCr or 16-bit images; Normalize converts them
// once at load time so later stages can read the Pix slice directly.
//
// # Separator Color
//
// A Separator is the uniform background color the photos were laid out on.
// Comparisons are exact on the R, G and B channels; alpha is ignored. The
// default separator is RGB(181, 230, 29), "#B5E61D".
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Images returned by the cache
// are shared and must be treated as read-only; callers that need to mutate a
// raster work on a copy (see Clone). All other functions are stateless.
//
// # Error Handling
//
// Loading failures wrap ErrLoad and zero-dimension rasters wrap ErrEmptyImage,
// so callers can classify them with errors.Is.
package imaging
