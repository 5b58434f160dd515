package shader

import (
	"fmt"
	"io/fs"
	"os"
)

// Loader reads raw WGSL source by path.
type Loader interface {
	// Load reads the shader source stored at path.
	//
	// Parameters:
	//   - path: the loader-relative path of the source file
	//
	// Returns:
	//   - []byte: the raw source
	//   - error: an error if the source cannot be read
	Load(path string) ([]byte, error)
}

// fsLoader is the implementation of the Loader interface over an fs.FS.
type fsLoader struct {
	fsys fs.FS
}

var _ Loader = &fsLoader{}

// NewFSLoader creates a Loader reading from fsys, typically an embed.FS holding built-in shaders.
//
// Parameters:
//   - fsys: the file system to read from
//
// Returns:
//   - Loader: the loader
func NewFSLoader(fsys fs.FS) Loader {
	return &fsLoader{fsys: fsys}
}

// NewDirLoader creates a Loader reading from a directory on disk.
//
// Parameters:
//   - dir: the root directory that paths are resolved against
//
// Returns:
//   - Loader: the loader
func NewDirLoader(dir string) Loader {
	return &fsLoader{fsys: os.DirFS(dir)}
}

func (l *fsLoader) Load(path string) ([]byte, error) {
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return data, nil
}
