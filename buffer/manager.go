package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"simpledb/common"
	"simpledb/disk"
	"simpledb/disk/pages"
	"simpledb/disk/wal"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Options struct {
	// MaxPinWait bounds how long Pin waits for a buffer to become free. Defaults to common.DefaultMaxPinWait.
	MaxPinWait time.Duration

	// Replacer defaults to a clock replacer.
	Replacer Replacer

	Logger *zap.Logger
	Meter  metric.Meter
}

// Handle is returned by Pin and stands for one pin of a buffer. Its page may be read and modified until the
// handle is passed to Unpin. A handle can be unpinned only once.
type Handle struct {
	frame    int
	block    disk.Block
	page     *pages.Page
	released bool
}

func (h *Handle) Block() disk.Block {
	return h.block
}

func (h *Handle) Page() *pages.Page {
	return h.page
}

// Manager keeps a fixed number of buffers and assigns blocks to them on demand. A pinned buffer is never
// reassigned. A dirty buffer is written back before reassignment, after the log is flushed up to the lsn of
// its last modification.
//
// All operations are serialized by a single lock which is held during disk io. Lock order is manager, log
// manager, file manager.
type Manager struct {
	fm *disk.FileManager
	lm *wal.LogManager

	mu          sync.Mutex
	buffers     []*Buffer
	blockMap    map[disk.Block]int // block => index of the buffer holding it
	emptyFrames []int              // indexes of buffers that were never assigned a block
	replacer    Replacer
	available   int

	// freed is broadcast whenever a buffer's pin count drops to zero
	freed   *common.Event
	maxWait time.Duration

	logger  *zap.Logger
	metrics *poolMetrics
}

func NewManager(fm *disk.FileManager, lm *wal.LogManager, poolSize int, opts Options) (*Manager, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: pool size must be positive, got %d", common.ErrInvalidOperation, poolSize)
	}
	if opts.MaxPinWait <= 0 {
		opts.MaxPinWait = common.DefaultMaxPinWait
	}
	if opts.Replacer == nil {
		opts.Replacer = NewClockReplacer(poolSize)
	}
	if opts.Replacer.GetSize() != poolSize {
		return nil, fmt.Errorf("%w: replacer is sized for %d frames, pool has %d", common.ErrInvalidOperation, opts.Replacer.GetSize(), poolSize)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &Manager{
		fm:          fm,
		lm:          lm,
		buffers:     make([]*Buffer, poolSize),
		blockMap:    make(map[disk.Block]int, poolSize),
		emptyFrames: make([]int, poolSize),
		replacer:    opts.Replacer,
		available:   poolSize,
		freed:       common.NewEvent(),
		maxWait:     opts.MaxPinWait,
		logger:      opts.Logger,
	}
	for i := range m.buffers {
		m.buffers[i] = newBuffer(fm.PageSize())
		m.emptyFrames[i] = i
	}

	metrics, err := newPoolMetrics(opts.Meter, m.Available)
	if err != nil {
		return nil, err
	}
	m.metrics = metrics

	m.logger.Info("buffer manager is initialized", zap.Int("poolSize", poolSize), zap.Duration("maxPinWait", m.maxWait))
	return m, nil
}

// Pin pins the buffer holding blk, reading the block into an unpinned buffer if it is not in the pool. When
// every buffer is pinned it waits for one to be unpinned, giving up with common.ErrBufferPoolExhausted after
// MaxPinWait or with the context's error when ctx is done. A failed Pin leaves the pool unchanged.
func (m *Manager) Pin(ctx context.Context, blk disk.Block) (*Handle, error) {
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	for {
		m.mu.Lock()
		h, err := m.tryPin(blk)
		if err != nil || h != nil {
			m.mu.Unlock()
			return h, err
		}
		freed := m.freed.Wait()
		m.mu.Unlock()

		m.logger.Debug("waiting for a free buffer", zap.Stringer("block", blk))

		select {
		case <-freed:
		case <-timer.C:
			m.metrics.pinTimeouts.Add(ctx, 1)
			return nil, fmt.Errorf("%w: no buffer became free for %v within %v", common.ErrBufferPoolExhausted, blk, m.maxWait)
		case <-ctx.Done():
			return nil, fmt.Errorf("pinning %v: %w", blk, ctx.Err())
		}
	}
}

// tryPin returns a nil handle and a nil error when every buffer is pinned.
func (m *Manager) tryPin(blk disk.Block) (*Handle, error) {
	if idx, ok := m.blockMap[blk]; ok {
		m.pinFrame(idx)
		m.metrics.hits.Add(context.Background(), 1)
		return m.newHandle(idx), nil
	}

	idx, fromReplacer, ok := m.reserveFrame()
	if !ok {
		return nil, nil
	}

	buf := m.buffers[idx]
	if buf.isPinned() {
		panic(fmt.Sprintf("a buffer is chosen as victim while it's pin count is not zero. pin count: %v, block: %v", buf.pins, buf.block))
	}

	if err := m.flushBuffer(buf); err != nil {
		m.unReserveFrame(idx, fromReplacer)
		m.logger.Error("failed to write back victim", zap.Stringer("block", buf.block), zap.Error(err))
		return nil, err
	}

	page, err := m.fm.Read(blk)
	if err != nil {
		m.unReserveFrame(idx, fromReplacer)
		return nil, err
	}

	if buf.block != nil {
		delete(m.blockMap, *buf.block)
		m.metrics.evictions.Add(context.Background(), 1)
		m.logger.Debug("evicted block", zap.Stringer("victim", buf.block), zap.Stringer("block", blk))
	}
	buf.assignToBlock(blk, page)
	m.blockMap[blk] = idx
	m.pinFrame(idx)
	m.metrics.misses.Add(context.Background(), 1)

	return m.newHandle(idx), nil
}

// Unpin releases the pin held by h. Unpinning a handle twice, or a handle whose buffer is no longer pinned,
// fails with common.ErrInvalidOperation.
func (m *Manager) Unpin(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, err := m.checkHandle(h, "unpin")
	if err != nil {
		return err
	}

	h.released = true
	buf.pins--
	if buf.pins == 0 {
		m.replacer.Unpin(h.frame)
		m.available++
		m.freed.Broadcast()
	}
	return nil
}

// SetModified records that txn changed the page of h and that lsn is the log record describing the change.
// ZeroLSN means the change was not logged. The stored lsn only grows and may not pass the latest log lsn.
func (m *Manager) SetModified(h *Handle, txn common.TxnID, lsn pages.LSN) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, err := m.checkHandle(h, "set modified")
	if err != nil {
		return err
	}
	if txn == common.NoTxn {
		return m.invalidOperation(fmt.Errorf("%w: modifying %v without a transaction", common.ErrInvalidOperation, h.block))
	}
	if latest := m.lm.LatestLSN(); lsn > latest {
		return m.invalidOperation(fmt.Errorf("%w: lsn %d of %v was not issued by the log, latest is %d",
			common.ErrInvalidOperation, lsn, h.block, latest))
	}

	buf.setModified(txn, lsn)
	return nil
}

// FlushAll writes back every buffer modified by txn. Pinned buffers are flushed as well; they stay pinned.
func (m *Manager) FlushAll(txn common.TxnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, buf := range m.buffers {
		if buf.txn != txn || !buf.isDirty() {
			continue
		}
		if err := m.flushBuffer(buf); err != nil {
			m.logger.Error("failed to flush buffer", zap.Stringer("block", buf.block), zap.Error(err))
			return err
		}
	}
	return nil
}

// Available returns the number of buffers that are not pinned.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.available
}

func (m *Manager) flushBuffer(buf *Buffer) error {
	if !buf.isDirty() {
		return nil
	}
	if err := buf.flush(m.fm, m.lm); err != nil {
		return err
	}

	m.metrics.pagesFlushed.Add(context.Background(), 1)
	return nil
}

func (m *Manager) pinFrame(idx int) {
	buf := m.buffers[idx]
	if buf.pins == 0 {
		m.available--
	}
	buf.pins++
	m.replacer.Pin(idx)
}

func (m *Manager) newHandle(idx int) *Handle {
	buf := m.buffers[idx]
	return &Handle{frame: idx, block: *buf.block, page: buf.page}
}

// reserveFrame returns a frame that can be assigned a new block. Never used frames are handed out before the
// replacer is asked for a victim.
func (m *Manager) reserveFrame() (idx int, fromReplacer bool, ok bool) {
	if len(m.emptyFrames) > 0 {
		idx = m.emptyFrames[0]
		m.emptyFrames = m.emptyFrames[1:]
		return idx, false, true
	}

	idx, err := m.replacer.ChooseVictim()
	if errors.Is(err, ErrNoVictim) {
		return 0, false, false
	}
	if err != nil {
		panic(err)
	}
	return idx, true, true
}

// unReserveFrame gives back a frame reserved by reserveFrame when it could not be used.
func (m *Manager) unReserveFrame(idx int, fromReplacer bool) {
	if !fromReplacer {
		m.emptyFrames = append(m.emptyFrames, idx)
		return
	}

	// the replacer already forgot the victim, make it a candidate again
	m.replacer.Pin(idx)
	m.replacer.Unpin(idx)
}

func (m *Manager) checkHandle(h *Handle, op string) (*Buffer, error) {
	if h == nil {
		return nil, m.invalidOperation(fmt.Errorf("%w: %s of a nil handle", common.ErrInvalidOperation, op))
	}
	if h.frame < 0 || h.frame >= len(m.buffers) {
		return nil, m.invalidOperation(fmt.Errorf("%w: %s of a handle from another pool", common.ErrInvalidOperation, op))
	}

	buf := m.buffers[h.frame]
	if h.released || !buf.holds(h.block) || !buf.isPinned() {
		return nil, m.invalidOperation(fmt.Errorf("%w: %s of %v which is not pinned by this handle", common.ErrInvalidOperation, op, h.block))
	}
	return buf, nil
}

// invalidOperation reports a contract violation. It panics when the logger is in development mode.
func (m *Manager) invalidOperation(err error) error {
	m.logger.DPanic("invalid buffer operation", zap.Error(err))
	return err
}
