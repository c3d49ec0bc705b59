package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DataSink collects workflow results under BaseDir/Container.
//
// Keys follow the usual sink convention: "@odf" places the file at the
// container root, "sub.@odf" places it in Container/sub/, and a plain "sub"
// also means Container/sub/. The file keeps its base name.
type DataSink struct {
	BaseDir   string
	Container string
}

func NewDataSink(baseDir, container string) *DataSink {
	return &DataSink{BaseDir: baseDir, Container: container}
}

// Root is the directory files are sunk into.
func (d *DataSink) Root() string {
	return filepath.Join(d.BaseDir, d.Container)
}

// Destination returns where src would land for key.
func (d *DataSink) Destination(key, src string) (string, error) {
	sub, _, err := parseSinkKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.Root(), sub, filepath.Base(src)), nil
}

// Put copies src into the sink and returns the destination path.
func (d *DataSink) Put(key, src string) (string, error) {
	dst, err := d.Destination(key, src)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("datasink: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("datasink: %s: %w", key, err)
	}
	return dst, nil
}

// parseSinkKey splits "a.b.@name" into the subdirectory "a/b" and "name".
func parseSinkKey(key string) (sub, name string, err error) {
	if key == "" {
		return "", "", fmt.Errorf("empty datasink key")
	}
	parts := strings.Split(key, ".")
	var dirs []string
	for i, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("malformed datasink key %q", key)
		}
		if strings.HasPrefix(p, "@") {
			if i != len(parts)-1 {
				return "", "", fmt.Errorf("datasink key %q: @name must be last", key)
			}
			name = p[1:]
			continue
		}
		if p == ".." || strings.ContainsRune(p, filepath.Separator) {
			return "", "", fmt.Errorf("datasink key %q escapes the container", key)
		}
		dirs = append(dirs, p)
	}
	return filepath.Join(dirs...), name, nil
}

// copyFile copies via a temporary file so readers never see a partial result.
// Directories (some MRtrix3 outputs are) are copied recursively.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}
