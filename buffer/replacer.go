package buffer

import (
	"errors"
	"fmt"

	"simpledb/common"
)

var ErrNoVictim = errors.New("nothing is unpinned")

const (
	ClockReplacerName = "clock"
	LruReplacerName   = "lru"
)

// Replacer decides which unpinned frame is reused when a block that is not in the pool is pinned. The
// manager calls Pin on every pin of a frame and Unpin when the pin count of a frame drops to zero. A frame
// returned by ChooseVictim is pinned by the manager right away.
type Replacer interface {
	Pin(frameId int)
	Unpin(frameId int)
	ChooseVictim() (frameId int, err error)
	GetSize() int
	NumPinnedFrames() int
}

// NewReplacer returns the replacer registered under name for a pool of size frames.
func NewReplacer(name string, size int) (Replacer, error) {
	switch name {
	case ClockReplacerName, "":
		return NewClockReplacer(size), nil
	case LruReplacerName:
		return NewLruReplacer(size), nil
	default:
		return nil, fmt.Errorf("%w: unknown replacer %q", common.ErrInvalidOperation, name)
	}
}
