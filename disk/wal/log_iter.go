package wal

import (
	"simpledb/common"
	"simpledb/disk"
	"simpledb/disk/pages"
)

// LogIterator walks the log from the newest record to the oldest one. Within a block records are visited
// from the boundary towards the end of the page, then the iterator moves to the previous block. It reads
// blocks directly from the file manager and does not use the buffer pool.
type LogIterator struct {
	fm         *disk.FileManager
	blk        disk.Block
	page       *pages.Page
	currentPos int
}

func newLogIterator(fm *disk.FileManager, blk disk.Block) (*LogIterator, error) {
	it := &LogIterator{fm: fm}
	if err := it.moveToBlock(blk); err != nil {
		return nil, err
	}
	return it, nil
}

// HasNext reports whether Next may return another record.
func (it *LogIterator) HasNext() bool {
	return it.currentPos < it.fm.PageSize() || it.blk.Number > 0
}

// Next returns the next older record. It returns common.ErrIteratorDone after the oldest record.
func (it *LogIterator) Next() ([]byte, error) {
	for it.currentPos >= it.fm.PageSize() {
		if it.blk.Number == 0 {
			return nil, common.ErrIteratorDone
		}
		if err := it.moveToBlock(disk.NewBlock(it.blk.FileName, it.blk.Number-1)); err != nil {
			return nil, err
		}
	}

	rec, err := it.page.GetBytes(it.currentPos)
	if err != nil {
		return nil, common.IOError("read log record in "+it.blk.String(), err)
	}
	it.currentPos += common.IntSize + len(rec)
	return rec, nil
}

func (it *LogIterator) moveToBlock(blk disk.Block) error {
	p, err := it.fm.Read(blk)
	if err != nil {
		return err
	}

	boundary, err := readBoundary(p)
	if err != nil {
		return err
	}

	it.blk = blk
	it.page = p
	it.currentPos = boundary
	return nil
}
