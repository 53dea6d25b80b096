package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// ErrPersistence is returned when sub-images cannot be written.
var ErrPersistence = errors.New("persistence failed")

// DefaultOutputDirName is the folder, next to the scans, receiving sub-images.
const DefaultOutputDirName = "Sauvegarde"

// FileStore writes sub-images into a folder next to their source scan.
type FileStore struct {
	// DirName is the output folder name. Empty means DefaultOutputDirName.
	DirName string
}

// OutputDir returns the folder receiving the sub-images of source.
func (s FileStore) OutputDir(source string) string {
	name := s.DirName
	if name == "" {
		name = DefaultOutputDirName
	}
	return filepath.Join(filepath.Dir(source), name)
}

// Save writes each region as OutputDir(source)/SubImageName(source, Index),
// encoded in the format of the source extension, and returns the written
// paths in order.
//
// The output folder is created on the first write; an existing folder is
// reused. Any failure wraps ErrPersistence. Files written before the failure
// are left in place and still returned.
func (s FileStore) Save(source string, regions []detection.SubImage) ([]string, error) {
	if len(regions) == 0 {
		return nil, nil
	}
	if !imaging.SupportedFormat(source) {
		return nil, fmt.Errorf("%w: no encoder for %s", ErrPersistence, filepath.Ext(source))
	}

	dir := s.OutputDir(source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", ErrPersistence, dir, err)
	}

	outputs := make([]string, 0, len(regions))
	for _, r := range regions {
		path := filepath.Join(dir, SubImageName(source, r.Index))
		if r.Pixels == nil {
			return outputs, fmt.Errorf("%w: region %d has no pixels", ErrPersistence, r.Index)
		}
		if err := imaging.Save(r.Pixels, path); err != nil {
			return outputs, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}
