package disk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dsnet/golib/memfile"
)

// MemFS keeps every file in memory. Files survive Close, so a file manager created later on the same MemFS
// sees what an earlier one wrote. It is used by tests and by the in-memory mode of the demo tool.
type MemFS struct {
	mu    sync.Mutex
	dirs  map[string]struct{}
	files map[string]*memFile
}

func NewMemFS() *MemFS {
	return &MemFS{
		dirs:  map[string]struct{}{},
		files: map[string]*memFile{},
	}
}

var _ FS = &MemFS{}

func (m *MemFS) OpenFile(name string, flag int, _ os.FileMode) (BlockFile, error) {
	name = filepath.Clean(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		if flag&os.O_CREATE == 0 {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		if _, ok := m.dirs[filepath.Dir(name)]; !ok {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		f = &memFile{f: memfile.New(make([]byte, 0))}
		m.files[name] = f
	}

	if flag&os.O_TRUNC != 0 {
		f.truncate()
	}
	return f, nil
}

func (m *MemFS) MkdirAll(dir string) error {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()

	for d := dir; ; d = filepath.Dir(d) {
		if _, ok := m.files[d]; ok {
			return &fs.PathError{Op: "mkdir", Path: d, Err: fmt.Errorf("not a directory")}
		}
		m.dirs[d] = struct{}{}
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	return nil
}

func (m *MemFS) Remove(name string) error {
	name = filepath.Clean(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

func (m *MemFS) ReadDir(dir string) ([]string, error) {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[dir]; !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}

	names := make([]string, 0)
	for name := range m.files {
		if filepath.Dir(name) == dir {
			names = append(names, filepath.Base(name))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemFS) Stat(name string) (FileInfo, error) {
	name = filepath.Clean(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[name]; ok {
		return FileInfo{IsDir: true}, nil
	}
	f, ok := m.files[name]
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	size, _ := f.Size()
	return FileInfo{Size: size}, nil
}

type memFile struct {
	mu sync.Mutex
	f  *memfile.File
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.f.ReadAt(p, off)
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.f.WriteAt(p, off)
}

func (f *memFile) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.f.Bytes())), nil
}

func (f *memFile) truncate() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.f = memfile.New(make([]byte, 0))
}

func (f *memFile) Sync() error {
	return nil
}

func (f *memFile) Close() error {
	return nil
}
