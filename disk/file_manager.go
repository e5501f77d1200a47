package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"simpledb/common"
	"simpledb/disk/pages"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TempFilePrefix marks scratch files. They are deleted when a file manager opens the directory.
const TempFilePrefix = "temp"

type Options struct {
	// FS defaults to the operating system file system.
	FS FS

	// SyncWrites makes every page write and append durable before it returns.
	SyncWrites bool

	Logger *zap.Logger
	Meter  metric.Meter
}

// FileManager moves whole pages between memory and the files of a single database directory. A block is
// addressed by its file name and number, and block n of a file lives at offset n*pageSize. Operations on
// one file are serialized while different files proceed in parallel.
type FileManager struct {
	dir        string
	pageSize   int
	fs         FS
	isNew      bool
	syncWrites bool

	fileLocks common.KeyMutex[string]

	mu        sync.Mutex
	openFiles map[string]BlockFile

	logger  *zap.Logger
	metrics *fileMetrics
}

// NewFileManager opens dir, creating it when it does not exist, and removes leftover temp files from it.
func NewFileManager(dir string, pageSize int, opts Options) (*FileManager, error) {
	if pageSize <= common.IntSize {
		return nil, fmt.Errorf("%w: page size %d is too small", common.ErrInvalidOperation, pageSize)
	}
	if opts.FS == nil {
		opts.FS = OSFS()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	metrics, err := newFileMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	fm := &FileManager{
		dir:        dir,
		pageSize:   pageSize,
		fs:         opts.FS,
		syncWrites: opts.SyncWrites,
		openFiles:  map[string]BlockFile{},
		logger:     opts.Logger.With(zap.String("dir", dir)),
		metrics:    metrics,
	}

	stat, err := fm.fs.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fm.isNew = true
		if err := fm.fs.MkdirAll(dir); err != nil {
			return nil, common.IOError("create directory "+dir, err)
		}
	case err != nil:
		return nil, common.IOError("stat directory "+dir, err)
	case !stat.IsDir:
		return nil, common.IOError("open directory", fmt.Errorf("%s is not a directory", dir))
	}

	if err := fm.removeTempFiles(); err != nil {
		return nil, err
	}

	fm.logger.Info("file manager is initialized", zap.Bool("isNew", fm.isNew), zap.Int("pageSize", pageSize))
	return fm, nil
}

func (fm *FileManager) removeTempFiles() error {
	names, err := fm.fs.ReadDir(fm.dir)
	if err != nil {
		return common.IOError("list directory "+fm.dir, err)
	}

	for _, name := range names {
		if !strings.HasPrefix(name, TempFilePrefix) {
			continue
		}
		if err := fm.fs.Remove(filepath.Join(fm.dir, name)); err != nil {
			return common.IOError("remove temp file "+name, err)
		}
		fm.logger.Debug("removed temp file", zap.String("file", name))
	}
	return nil
}

// Read returns a fresh page holding the content of blk. Reading a block of a missing file or a block past
// the end of the file fails with common.ErrIO.
func (fm *FileManager) Read(blk Block) (*pages.Page, error) {
	release := fm.fileLocks.Lock(blk.FileName)
	defer release()

	f, err := fm.getFile(blk.FileName, false)
	if err != nil {
		return nil, err
	}

	size, err := f.Size()
	if err != nil {
		return nil, common.IOError("read "+blk.String(), err)
	}
	if blk.Number < 0 || blk.Number >= size/int64(fm.pageSize) {
		return nil, common.IOError("read "+blk.String(), fmt.Errorf("block is out of range, file has %d blocks", size/int64(fm.pageSize)))
	}

	page := pages.NewPage(fm.pageSize)
	n, err := f.ReadAt(page.GetData(), fm.offset(blk))
	if n != fm.pageSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, common.IOError(fmt.Sprintf("read %v, read %d bytes", blk, n), err)
	}

	fm.metrics.blocksRead.Add(context.Background(), 1, fm.fileAttr(blk.FileName))
	return page, nil
}

// Write stores page at blk, creating the file when it does not exist yet.
func (fm *FileManager) Write(blk Block, page *pages.Page) error {
	if page.Size() != fm.pageSize {
		return fmt.Errorf("%w: writing a %d byte page with page size %d", common.ErrInvalidOperation, page.Size(), fm.pageSize)
	}
	if blk.Number < 0 {
		return fmt.Errorf("%w: negative block number in %v", common.ErrInvalidOperation, blk)
	}

	release := fm.fileLocks.Lock(blk.FileName)
	defer release()

	f, err := fm.getFile(blk.FileName, true)
	if err != nil {
		return err
	}

	if err := fm.writeAt(f, page.GetData(), fm.offset(blk)); err != nil {
		return common.IOError("write "+blk.String(), err)
	}

	fm.metrics.blocksWritten.Add(context.Background(), 1, fm.fileAttr(blk.FileName))
	return nil
}

// Append extends the file by one zeroed block and returns it. Concurrent appends to the same file get
// distinct, consecutive block numbers.
func (fm *FileManager) Append(fileName string) (Block, error) {
	release := fm.fileLocks.Lock(fileName)
	defer release()

	f, err := fm.getFile(fileName, true)
	if err != nil {
		return Block{}, err
	}

	count, err := fm.blockCount(f)
	if err != nil {
		return Block{}, common.IOError("append to "+fileName, err)
	}

	blk := NewBlock(fileName, count)
	if err := fm.writeAt(f, make([]byte, fm.pageSize), fm.offset(blk)); err != nil {
		return Block{}, common.IOError("append "+blk.String(), err)
	}

	fm.metrics.blocksAppended.Add(context.Background(), 1, fm.fileAttr(fileName))
	fm.logger.Debug("appended block", zap.Stringer("block", blk))
	return blk, nil
}

// BlockCount returns the number of whole blocks in the file. A missing file has no blocks.
func (fm *FileManager) BlockCount(fileName string) (int64, error) {
	release := fm.fileLocks.Lock(fileName)
	defer release()

	f, err := fm.getFile(fileName, false)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count, err := fm.blockCount(f)
	if err != nil {
		return 0, common.IOError("size of "+fileName, err)
	}
	return count, nil
}

// IsNew reports whether the directory was created by this file manager.
func (fm *FileManager) IsNew() bool {
	return fm.isNew
}

func (fm *FileManager) PageSize() int {
	return fm.pageSize
}

// TempFileName returns a unique file name that will be removed the next time the directory is opened.
func (fm *FileManager) TempFileName() string {
	return TempFilePrefix + "-" + uuid.NewString()
}

// Close closes every open file. The file manager must not be used afterwards.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var err error
	for name, f := range fm.openFiles {
		if fm.syncWrites {
			err = multierr.Append(err, f.Sync())
		}
		err = multierr.Append(err, f.Close())
		delete(fm.openFiles, name)
	}

	if err != nil {
		fm.logger.Error("failed to close files", zap.Error(err))
		return common.IOError("close", err)
	}
	fm.logger.Info("file manager is closed")
	return nil
}

func (fm *FileManager) getFile(fileName string, create bool) (BlockFile, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if f, ok := fm.openFiles[fileName]; ok {
		return f, nil
	}

	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}

	f, err := fm.fs.OpenFile(filepath.Join(fm.dir, fileName), flag, 0o644)
	if err != nil {
		return nil, common.IOError("open "+fileName, err)
	}

	fm.openFiles[fileName] = f
	return f, nil
}

func (fm *FileManager) writeAt(f BlockFile, data []byte, off int64) error {
	n, err := f.WriteAt(data, off)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	if fm.syncWrites {
		return f.Sync()
	}
	return nil
}

func (fm *FileManager) blockCount(f BlockFile) (int64, error) {
	size, err := f.Size()
	if err != nil {
		return 0, err
	}
	return size / int64(fm.pageSize), nil
}

func (fm *FileManager) offset(blk Block) int64 {
	return blk.Number * int64(fm.pageSize)
}

func (fm *FileManager) fileAttr(fileName string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("file", fileName))
}
