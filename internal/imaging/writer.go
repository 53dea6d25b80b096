package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Save encodes img to path. The output format is chosen from the file
// extension, so a sub-image keeps the format of the scan it came from.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// SupportedFormat reports whether path has an extension the encoder can write.
func SupportedFormat(path string) bool {
	_, err := imaging.FormatFromFilename(path)
	return err == nil
}
