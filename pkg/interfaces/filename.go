package interfaces

import (
	"fmt"
	"path/filepath"
	"strings"
)

// multiExtensions are treated as a single extension when splitting names.
var multiExtensions = []string{".nii.gz", ".tar.gz", ".niml.dset"}

// SplitFilename splits a path into directory, base name and extension.
// "/data/dwi.nii.gz" gives ("/data", "dwi", ".nii.gz").
func SplitFilename(path string) (dir, base, ext string) {
	dir = filepath.Dir(path)
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, me := range multiExtensions {
		if strings.HasSuffix(lower, me) && len(name) > len(me) {
			return dir, name[:len(name)-len(me)], name[len(name)-len(me):]
		}
	}
	ext = filepath.Ext(name)
	return dir, strings.TrimSuffix(name, ext), ext
}

// derive generates a filename for p from its name source. The result is a
// bare name so the binary writes it into its working directory.
func (i *Interface) derive(p *Param) (string, bool) {
	if p.NameSource == "" {
		return "", false
	}
	src, ok := i.inputs[p.NameSource]
	if !ok {
		return "", false
	}
	path, ok := src.(string)
	if !ok || path == "" {
		return "", false
	}
	_, base, ext := SplitFilename(path)
	name := fmt.Sprintf(p.NameTemplate, base)
	if p.KeepExtension {
		name += ext
	}
	return name, true
}
