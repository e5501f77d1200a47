package buffer

import (
	"sync"
)

const (
	PinnedBit       uint8 = 1 << 7
	SecondChanceBit uint8 = 1 << 6
)

type counter struct {
	bits uint8
}

var _ Replacer = &ClockReplacer{}

// ClockReplacer sweeps the frames round robin. A frame that was pinned since the hand last passed it gets a
// second chance; the first unpinned frame without one is the victim.
type ClockReplacer struct {
	frames         []counter
	victimIterator int
	lock           sync.Mutex
}

func (c *ClockReplacer) Pin(frameId int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.frames[frameId].bits |= PinnedBit
	c.frames[frameId].bits |= SecondChanceBit
}

func (c *ClockReplacer) Unpin(frameId int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if (c.frames[frameId].bits & PinnedBit) == 0 {
		panic("unpinning a frame which is already unpinned or not pinned at all")
	}

	c.frames[frameId].bits &= ^PinnedBit
}

func (c *ClockReplacer) ChooseVictim() (frameId int, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if len(c.frames) == 0 {
		return 0, ErrNoVictim
	}

	// two full turns are enough, the first one clears every second chance bit
	for i := 0; i < 2*len(c.frames); i++ {
		curr := c.victimIterator
		c.victimIterator = (c.victimIterator + 1) % len(c.frames)

		f := &c.frames[curr]
		if f.bits&PinnedBit != 0 {
			continue
		}
		if f.bits&SecondChanceBit != 0 {
			f.bits &= ^SecondChanceBit
			continue
		}
		return curr, nil
	}

	return 0, ErrNoVictim
}

func (c *ClockReplacer) GetSize() int {
	return len(c.frames)
}

func (c *ClockReplacer) NumPinnedFrames() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	i := 0
	for _, frame := range c.frames {
		if frame.bits&PinnedBit > 0 {
			i++
		}
	}

	return i
}

func NewClockReplacer(size int) *ClockReplacer {
	return &ClockReplacer{
		frames: make([]counter, size),
	}
}
