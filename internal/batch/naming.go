package batch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SubImageName returns the file name of the index-th sub-image cut from
// source: the source stem, an underscore, the index padded to two digits and
// the source extension. "scan.png" with index 3 gives "scan_03.png"; index 12
// gives "scan_12.png".
func SubImageName(source string, index int) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%02d%s", stem, index, ext)
}
