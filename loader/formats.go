package loader

import (
	"path/filepath"
	"strings"
)

// rawExtensions lists the camera raw container extensions routed to the
// raw developer.
var rawExtensions = map[string]bool{
	".3fr": true,
	".arw": true,
	".cr2": true,
	".cr3": true,
	".crw": true,
	".dcr": true,
	".dng": true,
	".erf": true,
	".fff": true,
	".iiq": true,
	".kdc": true,
	".mos": true,
	".mrw": true,
	".nef": true,
	".nrw": true,
	".orf": true,
	".pef": true,
	".raf": true,
	".raw": true,
	".rw2": true,
	".rwl": true,
	".sr2": true,
	".srf": true,
	".srw": true,
	".x3f": true,
}

// IsRawPath reports whether the path names a camera raw file.
func IsRawPath(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
