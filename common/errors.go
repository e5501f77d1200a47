package common

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is returned when a disk read, write or append fails. It is not retried.
	ErrIO = errors.New("i/o error")

	// ErrBufferPoolExhausted is returned by Pin when no buffer became free in time. Callers may retry.
	ErrBufferPoolExhausted = errors.New("buffer pool exhausted")

	// ErrInvalidOperation reports a broken contract such as a double unpin or an out of range page access.
	ErrInvalidOperation = errors.New("invalid operation")

	ErrLogRecordTooLarge = fmt.Errorf("%w: log record does not fit in a log page", ErrInvalidOperation)
	ErrIteratorDone      = errors.New("log iterator has no more records")
)

// IOError wraps err so that errors.Is(err, ErrIO) holds while the cause stays reachable.
func IOError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
