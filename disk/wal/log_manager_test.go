package wal

import (
	"errors"
	"fmt"
	"path/filepath"
	"simpledb/common"
	"simpledb/disk"
	"simpledb/disk/pages"
	"simpledb/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPageSize = 400
	testLogFile  = "test.log"
)

var errInjected = errors.New("injected write failure")

// failNthWriteAt fails the nth write to file at offset and lets every other write through.
func failNthWriteAt(file string, offset int64, nth int) func(testutil.WriteEvent) error {
	seen := 0
	return func(e testutil.WriteEvent) error {
		if e.File != file || e.Offset != offset {
			return nil
		}
		seen++
		if seen == nth {
			return errInjected
		}
		return nil
	}
}

func newTestLogManager(t *testing.T, fsys disk.FS, dir string) (*disk.FileManager, *LogManager) {
	t.Helper()
	fm, err := disk.NewFileManager(dir, testPageSize, disk.Options{FS: fsys})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	lm, err := NewLogManager(fm, testLogFile, Options{})
	require.NoError(t, err)
	return fm, lm
}

// createRecord encodes a string followed by an int, the way a higher layer would build a log record.
func createRecord(t *testing.T, s string, n int32) []byte {
	t.Helper()
	npos := pages.MaxLength(s)
	b := make([]byte, npos+common.IntSize)
	p := pages.NewPageFromBytes(b)
	require.NoError(t, p.SetString(0, s))
	require.NoError(t, p.SetInt(npos, n))
	return b
}

func decodeRecord(t *testing.T, rec []byte) (string, int32) {
	t.Helper()
	p := pages.NewPageFromBytes(rec)
	s, err := p.GetString(0)
	require.NoError(t, err)
	n, err := p.GetInt(pages.MaxLength(s))
	require.NoError(t, err)
	return s, n
}

func appendRecords(t *testing.T, lm *LogManager, start, end int) []pages.LSN {
	t.Helper()
	var lsns []pages.LSN
	for i := start; i <= end; i++ {
		lsn, err := lm.Append(createRecord(t, fmt.Sprintf("record%d", i), int32(i+100)))
		require.NoError(t, err)
		lsns = append(lsns, lsn)
	}
	return lsns
}

func readAll(t *testing.T, lm *LogManager) []string {
	t.Helper()
	it, err := lm.Iterator()
	require.NoError(t, err)

	var res []string
	for it.HasNext() {
		rec, err := it.Next()
		require.NoError(t, err)
		s, n := decodeRecord(t, rec)
		res = append(res, fmt.Sprintf("%s:%d", s, n))
	}
	_, err = it.Next()
	require.ErrorIs(t, err, common.ErrIteratorDone)
	return res
}

func expectedRecords(from, to int) []string {
	var res []string
	for i := from; i >= to; i-- {
		res = append(res, fmt.Sprintf("record%d:%d", i, i+100))
	}
	return res
}

func TestLogManager_Iterator_Should_Return_Records_Newest_First(t *testing.T) {
	_, lm := newTestLogManager(t, disk.NewMemFS(), "db")

	lsns := appendRecords(t, lm, 1, 3)
	assert.Equal(t, []pages.LSN{1, 2, 3}, lsns)
	assert.Equal(t, pages.LSN(3), lm.LatestLSN())

	assert.Equal(t, expectedRecords(3, 1), readAll(t, lm))
	assert.Equal(t, pages.LSN(3), lm.LastFlushedLSN())
}

func TestLogManager_Empty_Log_Has_No_Records(t *testing.T) {
	_, lm := newTestLogManager(t, disk.NewMemFS(), "db")

	it, err := lm.Iterator()
	require.NoError(t, err)
	assert.False(t, it.HasNext())
	_, err = it.Next()
	assert.ErrorIs(t, err, common.ErrIteratorDone)
	assert.Equal(t, pages.ZeroLSN, lm.LatestLSN())
}

func TestLogManager_Should_Span_Multiple_Blocks(t *testing.T) {
	fm, lm := newTestLogManager(t, disk.NewMemFS(), "db")

	appendRecords(t, lm, 1, 35)
	count, err := fm.BlockCount(testLogFile)
	require.NoError(t, err)
	assert.Greater(t, count, int64(1))

	// filling a page flushes it before a new block is started
	assert.Greater(t, lm.LastFlushedLSN(), pages.ZeroLSN)
	assert.Less(t, lm.LastFlushedLSN(), lm.LatestLSN())

	assert.Equal(t, expectedRecords(35, 1), readAll(t, lm))

	appendRecords(t, lm, 36, 70)
	assert.Equal(t, expectedRecords(70, 1), readAll(t, lm))
}

func TestLogManager_Iterator_Should_Be_Restartable(t *testing.T) {
	_, lm := newTestLogManager(t, disk.NewMemFS(), "db")
	appendRecords(t, lm, 1, 40)

	first := readAll(t, lm)
	second := readAll(t, lm)
	assert.Equal(t, first, second)

	// an iterator sees only what was appended before it was created
	it, err := lm.Iterator()
	require.NoError(t, err)
	appendRecords(t, lm, 41, 41)
	rec, err := it.Next()
	require.NoError(t, err)
	s, _ := decodeRecord(t, rec)
	assert.Equal(t, "record40", s)
}

func TestLogManager_Flush_Should_Be_Idempotent(t *testing.T) {
	fsys := testutil.NewRecordingFS(disk.NewMemFS())
	_, lm := newTestLogManager(t, fsys, "db")

	lsns := appendRecords(t, lm, 1, 3)
	fsys.Reset()

	require.NoError(t, lm.Flush(lsns[1]))
	assert.Equal(t, 1, fsys.Writes(testLogFile))
	assert.Equal(t, lsns[2], lm.LastFlushedLSN())

	require.NoError(t, lm.Flush(lsns[1]))
	require.NoError(t, lm.Flush(lsns[2]))
	require.NoError(t, lm.Flush(pages.ZeroLSN))
	assert.Equal(t, 1, fsys.Writes(testLogFile))

	// nothing pending, so the iterator does not write either
	_, err := lm.Iterator()
	require.NoError(t, err)
	assert.Equal(t, 1, fsys.Writes(testLogFile))

	lsn, err := lm.Append(createRecord(t, "more", 1))
	require.NoError(t, err)
	require.NoError(t, lm.Flush(lsn))
	assert.Equal(t, 2, fsys.Writes(testLogFile))
}

func TestLogManager_Should_Resume_Last_Block_On_Restart(t *testing.T) {
	for _, fsys := range []disk.FS{disk.NewMemFS(), disk.OSFS()} {
		dir := filepath.Join(t.TempDir(), "db")

		fm, lm := newTestLogManager(t, fsys, dir)
		appendRecords(t, lm, 1, 20)
		require.NoError(t, lm.Flush(lm.LatestLSN()))
		require.NoError(t, fm.Close())

		fm, lm = newTestLogManager(t, fsys, dir)
		assert.Equal(t, pages.ZeroLSN, lm.LatestLSN())

		lsns := appendRecords(t, lm, 21, 40)
		assert.Equal(t, pages.LSN(1), lsns[0])
		assert.Equal(t, expectedRecords(40, 1), readAll(t, lm))
		require.NoError(t, fm.Close())
	}
}

func TestLogManager_Should_Reject_Records_Larger_Than_A_Page(t *testing.T) {
	_, lm := newTestLogManager(t, disk.NewMemFS(), "db")

	_, err := lm.Append(make([]byte, testPageSize))
	assert.ErrorIs(t, err, common.ErrLogRecordTooLarge)
	assert.ErrorIs(t, err, common.ErrInvalidOperation)
	assert.Equal(t, pages.ZeroLSN, lm.LatestLSN())

	_, err = lm.Append(make([]byte, testPageSize-2*common.IntSize+1))
	assert.ErrorIs(t, err, common.ErrLogRecordTooLarge)

	appendRecords(t, lm, 1, 1)
	largest := make([]byte, testPageSize-2*common.IntSize)
	largest[0] = 7
	lsn, err := lm.Append(largest)
	require.NoError(t, err)
	assert.Equal(t, pages.LSN(2), lsn)

	it, err := lm.Iterator()
	require.NoError(t, err)
	rec, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, largest, rec)
	rec, err = it.Next()
	require.NoError(t, err)
	s, _ := decodeRecord(t, rec)
	assert.Equal(t, "record1", s)
}

func TestLogManager_Failed_New_Block_Should_Keep_Earlier_Records(t *testing.T) {
	// the first write at block 1 extends the file, the second one initializes the block
	for name, nth := range map[string]int{"extend": 1, "initialize": 2} {
		t.Run(name, func(t *testing.T) {
			fsys := testutil.NewRecordingFS(disk.NewMemFS())
			fm, lm := newTestLogManager(t, fsys, "db")

			appendRecords(t, lm, 1, 20)
			require.NoError(t, lm.Flush(lm.LatestLSN()))
			count, err := fm.BlockCount(testLogFile)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)

			fsys.FailWrites(failNthWriteAt(testLogFile, testPageSize, nth))
			_, err = lm.Append(createRecord(t, "record21", 121))
			assert.ErrorIs(t, err, errInjected)
			assert.ErrorIs(t, err, common.ErrIO)
			assert.Equal(t, pages.LSN(20), lm.LatestLSN())
			assert.Equal(t, pages.LSN(20), lm.LastFlushedLSN())

			lsns := appendRecords(t, lm, 21, 25)
			assert.Equal(t, pages.LSN(21), lsns[0])
			assert.Equal(t, expectedRecords(25, 1), readAll(t, lm))
		})
	}
}

func TestLogManager_Failed_Flush_On_Rollover_Should_Not_Append(t *testing.T) {
	fsys := testutil.NewRecordingFS(disk.NewMemFS())
	fm, lm := newTestLogManager(t, fsys, "db")
	appendRecords(t, lm, 1, 20)

	fsys.FailWrites(failNthWriteAt(testLogFile, 0, 1))
	_, err := lm.Append(createRecord(t, "record21", 121))
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, pages.LSN(20), lm.LatestLSN())
	assert.Equal(t, pages.ZeroLSN, lm.LastFlushedLSN())

	count, err := fm.BlockCount(testLogFile)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	appendRecords(t, lm, 21, 22)
	assert.Equal(t, expectedRecords(22, 1), readAll(t, lm))
}

func TestLogManager_Failed_Flush_Should_Keep_Last_Flushed_LSN(t *testing.T) {
	fsys := testutil.NewRecordingFS(disk.NewMemFS())
	_, lm := newTestLogManager(t, fsys, "db")
	lsns := appendRecords(t, lm, 1, 3)

	fsys.FailWrites(func(e testutil.WriteEvent) error {
		if e.File == testLogFile {
			return errInjected
		}
		return nil
	})

	err := lm.Flush(lsns[2])
	assert.ErrorIs(t, err, errInjected)
	assert.ErrorIs(t, err, common.ErrIO)
	assert.Equal(t, pages.ZeroLSN, lm.LastFlushedLSN())

	_, err = lm.Iterator()
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, pages.ZeroLSN, lm.LastFlushedLSN())

	fsys.FailWrites(nil)
	require.NoError(t, lm.Flush(lsns[0]))
	assert.Equal(t, lsns[2], lm.LastFlushedLSN())
	assert.Equal(t, expectedRecords(3, 1), readAll(t, lm))
}
