package common

import "time"

// TxnID identifies the transaction that modified a buffer. The storage core
// never interprets it beyond equality.
type TxnID int64

// NoTxn marks a buffer that carries no unflushed modification.
const NoTxn TxnID = -1

const (
	DefaultPageSize   = 4096
	DefaultPoolSize   = 8
	DefaultLogFile    = "simpledb.log"
	DefaultMaxPinWait = time.Second * 10

	// IntSize is the encoded size of an int32 length or value inside a page.
	IntSize = 4
	// LSNSize is the encoded size of a log sequence number inside a page.
	LSNSize = 8
)
