package testutil

import (
	"os"
	"path/filepath"
	"sync"

	"simpledb/disk"
)

// WriteEvent is one physical write that reached the underlying file system.
type WriteEvent struct {
	File   string
	Offset int64
	Size   int
}

// RecordingFS wraps a disk.FS and records every write made through files it opened. File names are
// recorded without their directory.
type RecordingFS struct {
	disk.FS

	mu      sync.Mutex
	events  []WriteEvent
	onWrite func(WriteEvent)
	failIf  func(WriteEvent) error
}

func NewRecordingFS(inner disk.FS) *RecordingFS {
	return &RecordingFS{FS: inner}
}

func (r *RecordingFS) OpenFile(name string, flag int, perm os.FileMode) (disk.BlockFile, error) {
	f, err := r.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &recordingFile{BlockFile: f, name: filepath.Base(name), fs: r}, nil
}

// OnWrite sets a hook that is called after each write lands. The hook runs on the writing goroutine while
// the writer holds its locks, so it must not call back into the component doing the write.
func (r *RecordingFS) OnWrite(fn func(WriteEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onWrite = fn
}

// FailWrites sets a check that runs before each write. When it returns an error the write does not reach
// the file and WriteAt returns that error. Passing nil lets every write through again.
func (r *RecordingFS) FailWrites(fn func(WriteEvent) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failIf = fn
}

// Events returns the writes recorded so far in the order they happened.
func (r *RecordingFS) Events() []WriteEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]WriteEvent, len(r.events))
	copy(res, r.events)
	return res
}

// Writes returns the number of writes made to file.
func (r *RecordingFS) Writes(file string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.File == file {
			n++
		}
	}
	return n
}

func (r *RecordingFS) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

func (r *RecordingFS) check(e WriteEvent) error {
	r.mu.Lock()
	failIf := r.failIf
	r.mu.Unlock()

	if failIf == nil {
		return nil
	}
	return failIf(e)
}

func (r *RecordingFS) record(e WriteEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.onWrite
	r.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

type recordingFile struct {
	disk.BlockFile
	name string
	fs   *RecordingFS
}

func (f *recordingFile) WriteAt(p []byte, off int64) (int, error) {
	if err := f.fs.check(WriteEvent{File: f.name, Offset: off, Size: len(p)}); err != nil {
		return 0, err
	}

	n, err := f.BlockFile.WriteAt(p, off)
	if err == nil {
		f.fs.record(WriteEvent{File: f.name, Offset: off, Size: n})
	}
	return n, err
}
