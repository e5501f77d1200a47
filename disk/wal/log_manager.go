package wal

import (
	"context"
	"fmt"
	"sync"

	"simpledb/common"
	"simpledb/disk"
	"simpledb/disk/pages"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// boundaryOffset is where every log page keeps its boundary. The boundary is the offset of the most recently
// written record. Records are packed from the end of the page towards the start, so a fresh page has its
// boundary equal to the page size and the free space of a page is [IntSize, boundary).
const boundaryOffset = 0

type Options struct {
	Logger *zap.Logger
	Meter  metric.Meter
}

// LogManager appends opaque records to the log file and makes them durable on request. Appending only
// touches the in-memory log page; the page reaches disk when it fills up, when Flush is called with an lsn
// that is not durable yet, or when an iterator is created.
type LogManager struct {
	fm      *disk.FileManager
	logFile string

	mu          sync.Mutex
	page        *pages.Page
	currBlk     disk.Block
	latestLSN   pages.LSN
	lastFlushed pages.LSN

	logger  *zap.Logger
	metrics *logMetrics
}

// NewLogManager opens logFile. An empty log gets its first block, otherwise appending continues in the last
// block of the file. LSNs are not persisted and start over from 1 in every process.
func NewLogManager(fm *disk.FileManager, logFile string, opts Options) (*LogManager, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	metrics, err := newLogMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	lm := &LogManager{
		fm:      fm,
		logFile: logFile,
		logger:  opts.Logger.With(zap.String("logFile", logFile)),
		metrics: metrics,
	}

	count, err := fm.BlockCount(logFile)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		if err := lm.appendNewBlock(); err != nil {
			return nil, err
		}
	} else {
		lm.currBlk = disk.NewBlock(logFile, count-1)
		p, err := fm.Read(lm.currBlk)
		if err != nil {
			return nil, err
		}
		lm.page = p

		boundary, err := readBoundary(lm.page)
		if err != nil {
			return nil, fmt.Errorf("resuming %v: %w", lm.currBlk, err)
		}
		if err := lm.page.SetInt(boundaryOffset, int32(boundary)); err != nil {
			return nil, err
		}
	}

	lm.logger.Info("log manager is initialized", zap.Int64("blocks", count), zap.Stringer("current", lm.currBlk))
	return lm, nil
}

// Append adds rec to the log and returns its lsn. The record is not durable until Flush is called with the
// returned lsn or a later one.
func (lm *LogManager) Append(rec []byte) (pages.LSN, error) {
	bytesNeeded := common.IntSize + len(rec)
	if bytesNeeded > lm.fm.PageSize()-common.IntSize {
		return pages.ZeroLSN, fmt.Errorf("%w: record is %d bytes, page size is %d", common.ErrLogRecordTooLarge, len(rec), lm.fm.PageSize())
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	boundary, err := readBoundary(lm.page)
	if err != nil {
		return pages.ZeroLSN, err
	}

	if boundary-bytesNeeded < common.IntSize {
		// record does not fit, move on to the next block
		if err := lm.flush(); err != nil {
			return pages.ZeroLSN, err
		}
		if err := lm.appendNewBlock(); err != nil {
			return pages.ZeroLSN, err
		}
		boundary = lm.fm.PageSize()
	}

	recPos := boundary - bytesNeeded
	if err := lm.page.SetBytes(recPos, rec); err != nil {
		return pages.ZeroLSN, err
	}
	if err := lm.page.SetInt(boundaryOffset, int32(recPos)); err != nil {
		return pages.ZeroLSN, err
	}

	lm.latestLSN++
	lm.metrics.recordsAppended.Add(context.Background(), 1)
	lm.metrics.bytesAppended.Add(context.Background(), int64(len(rec)))
	return lm.latestLSN, nil
}

// Flush makes every record up to and including lsn durable. It does nothing when lsn is already durable,
// otherwise it writes the current log page, which makes every appended record durable.
func (lm *LogManager) Flush(lsn pages.LSN) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lsn <= lm.lastFlushed {
		return nil
	}
	return lm.flush()
}

// Iterator flushes the log and returns an iterator that visits every record from the newest to the oldest.
// Each call returns an independent iterator starting from the newest record.
func (lm *LogManager) Iterator() (*LogIterator, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.latestLSN > lm.lastFlushed {
		if err := lm.flush(); err != nil {
			return nil, err
		}
	}
	return newLogIterator(lm.fm, lm.currBlk)
}

// LatestLSN returns the lsn of the most recently appended record, or ZeroLSN when nothing was appended yet.
func (lm *LogManager) LatestLSN() pages.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return lm.latestLSN
}

// LastFlushedLSN returns the highest lsn known to be durable.
func (lm *LogManager) LastFlushedLSN() pages.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return lm.lastFlushed
}

func (lm *LogManager) flush() error {
	if err := lm.fm.Write(lm.currBlk, lm.page); err != nil {
		lm.logger.Error("failed to flush log page", zap.Stringer("block", lm.currBlk), zap.Error(err))
		return err
	}

	lm.lastFlushed = lm.latestLSN
	lm.metrics.pagesFlushed.Add(context.Background(), 1)
	lm.logger.Debug("flushed log page", zap.Stringer("block", lm.currBlk), zap.Uint64("lsn", uint64(lm.lastFlushed)))
	return nil
}

func (lm *LogManager) appendNewBlock() error {
	blk, err := lm.fm.Append(lm.logFile)
	if err != nil {
		return err
	}

	// the current page stays untouched until the new block is on disk
	page := pages.NewPage(lm.fm.PageSize())
	if err := page.SetInt(boundaryOffset, int32(lm.fm.PageSize())); err != nil {
		return err
	}
	if err := lm.fm.Write(blk, page); err != nil {
		lm.logger.Error("failed to initialize log block", zap.Stringer("block", blk), zap.Error(err))
		return err
	}

	lm.page = page
	lm.currBlk = blk
	return nil
}

// readBoundary returns the boundary of a log page. A zeroed page is a block that was appended but never
// written, it is treated as empty.
func readBoundary(p *pages.Page) (int, error) {
	b, err := p.GetInt(boundaryOffset)
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return p.Size(), nil
	}
	if b < common.IntSize || int(b) > p.Size() {
		return 0, common.IOError("read log page", fmt.Errorf("corrupt boundary %d", b))
	}
	return int(b), nil
}
