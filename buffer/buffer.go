package buffer

import (
	"simpledb/common"
	"simpledb/disk"
	"simpledb/disk/pages"
	"simpledb/disk/wal"
)

// Buffer is one frame of the pool. It holds the page of the block assigned to it together with the pin count
// and the identity of the last unflushed modification. Every field is guarded by the manager's lock.
type Buffer struct {
	page  *pages.Page
	block *disk.Block
	pins  int

	// txn is common.NoTxn unless the page has modifications that are not on disk yet.
	txn common.TxnID
	// lsn is the highest lsn of a log record describing a modification of the page.
	lsn pages.LSN
}

func newBuffer(pageSize int) *Buffer {
	return &Buffer{
		page: pages.NewPage(pageSize),
		txn:  common.NoTxn,
		lsn:  pages.ZeroLSN,
	}
}

func (b *Buffer) isPinned() bool {
	return b.pins > 0
}

func (b *Buffer) isDirty() bool {
	return b.txn != common.NoTxn
}

func (b *Buffer) holds(blk disk.Block) bool {
	return b.block != nil && *b.block == blk
}

func (b *Buffer) setModified(txn common.TxnID, lsn pages.LSN) {
	b.txn = txn
	if lsn > b.lsn {
		b.lsn = lsn
	}
}

// flush writes the page if it is dirty. The log is flushed up to the page's lsn before the page is written.
func (b *Buffer) flush(fm *disk.FileManager, lm *wal.LogManager) error {
	if !b.isDirty() {
		return nil
	}

	if err := lm.Flush(b.lsn); err != nil {
		return err
	}
	if err := fm.Write(*b.block, b.page); err != nil {
		return err
	}

	b.txn = common.NoTxn
	return nil
}

func (b *Buffer) assignToBlock(blk disk.Block, page *pages.Page) {
	b.block = &blk
	b.page = page
	b.pins = 0
	b.txn = common.NoTxn
	b.lsn = pages.ZeroLSN
}
