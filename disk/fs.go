package disk

import (
	"io"
	"os"
)

type FileInfo struct {
	Size  int64
	IsDir bool
}

// FS is the file system the file manager works on. Names are full paths. Missing files are reported with
// errors satisfying errors.Is(err, fs.ErrNotExist).
type FS interface {
	OpenFile(name string, flag int, perm os.FileMode) (BlockFile, error)
	MkdirAll(dir string) error
	Remove(name string) error
	ReadDir(dir string) (names []string, err error)
	Stat(name string) (FileInfo, error)
}

// BlockFile is an open file that is read and written at absolute offsets.
type BlockFile interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Size() (int64, error)
	Sync() error
}

var _ BlockFile = &osFile{}

type osFile struct {
	*os.File
}

func (f *osFile) Size() (int64, error) {
	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

type osFS struct{}

// OSFS returns an FS backed by the operating system.
func OSFS() FS {
	return osFS{}
}

var _ FS = osFS{}

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (BlockFile, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &osFile{File: f}, nil
}

func (osFS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func (osFS) Remove(name string) error {
	return os.Remove(name)
}

func (osFS) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (osFS) Stat(name string) (FileInfo, error) {
	stat, err := os.Stat(name)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: stat.Size(), IsDir: stat.IsDir()}, nil
}
