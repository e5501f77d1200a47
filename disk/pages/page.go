package pages

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"simpledb/common"
)

// LSN is a log sequence number. The log manager hands them out starting from 1, so ZeroLSN means that no
// log record is associated with a change.
type LSN uint64

const ZeroLSN LSN = 0

// Page is a fixed size in-memory byte buffer mirroring the content of one block on disk. All offsets are
// supplied by the caller; a Page only checks that every access stays inside its bounds. Integers are stored
// big endian, strings and blobs are stored as an int32 length followed by the bytes.
//
// A Page is not safe for concurrent mutation. Callers hold a pin on the buffer that owns it.
type Page struct {
	data []byte
}

func NewPage(size int) *Page {
	return &Page{data: make([]byte, size)}
}

// NewPageFromBytes wraps b without copying it.
func NewPageFromBytes(b []byte) *Page {
	return &Page{data: b}
}

// MaxLength returns the number of bytes SetString needs to store s.
func MaxLength(s string) int {
	return common.IntSize + len(s)
}

func (p *Page) Size() int {
	return len(p.data)
}

// GetData returns the underlying bytes. Writes to it are visible through the page.
func (p *Page) GetData() []byte {
	return p.data
}

func (p *Page) GetInt(offset int) (int32, error) {
	if err := p.checkBounds(offset, common.IntSize); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p.data[offset:])), nil
}

func (p *Page) SetInt(offset int, val int32) error {
	if err := p.checkBounds(offset, common.IntSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(val))
	return nil
}

// GetBytes returns a copy of the length prefixed blob stored at offset.
func (p *Page) GetBytes(offset int) ([]byte, error) {
	n, err := p.GetInt(offset)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative blob length %d at offset %d", common.ErrInvalidOperation, n, offset)
	}

	start := offset + common.IntSize
	if err := p.checkBounds(start, int(n)); err != nil {
		return nil, err
	}

	res := make([]byte, n)
	copy(res, p.data[start:])
	return res, nil
}

func (p *Page) SetBytes(offset int, b []byte) error {
	if err := p.checkBounds(offset, common.IntSize+len(b)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(len(b)))
	copy(p.data[offset+common.IntSize:], b)
	return nil
}

func (p *Page) GetString(offset int) (string, error) {
	b, err := p.GetBytes(offset)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: bytes at offset %d are not valid utf-8", common.ErrInvalidOperation, offset)
	}
	return string(b), nil
}

func (p *Page) SetString(offset int, s string) error {
	return p.SetBytes(offset, []byte(s))
}

func (p *Page) GetLSN(offset int) (LSN, error) {
	if err := p.checkBounds(offset, common.LSNSize); err != nil {
		return ZeroLSN, err
	}
	return LSN(binary.BigEndian.Uint64(p.data[offset:])), nil
}

func (p *Page) SetLSN(offset int, lsn LSN) error {
	if err := p.checkBounds(offset, common.LSNSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(p.data[offset:], uint64(lsn))
	return nil
}

func (p *Page) checkBounds(offset, length int) error {
	if offset < 0 || length < 0 || offset > len(p.data)-length {
		return fmt.Errorf("%w: access of %d bytes at offset %d exceeds page size %d", common.ErrInvalidOperation, length, offset, len(p.data))
	}
	return nil
}
