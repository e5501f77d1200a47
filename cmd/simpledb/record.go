package main

import (
	"simpledb/common"
	"simpledb/disk/pages"
)

// encodeRecord builds a log record holding a string followed by an int.
func encodeRecord(s string, n int32) ([]byte, error) {
	npos := pages.MaxLength(s)
	b := make([]byte, npos+common.IntSize)

	p := pages.NewPageFromBytes(b)
	if err := p.SetString(0, s); err != nil {
		return nil, err
	}
	if err := p.SetInt(npos, n); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeRecord(rec []byte) (string, int32, error) {
	p := pages.NewPageFromBytes(rec)
	s, err := p.GetString(0)
	if err != nil {
		return "", 0, err
	}
	n, err := p.GetInt(pages.MaxLength(s))
	if err != nil {
		return "", 0, err
	}
	return s, n, nil
}
